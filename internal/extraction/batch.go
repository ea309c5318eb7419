package extraction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Scan360AI/rnd-credit-manager/internal/apperr"
)

// MaxFileSize is the largest document accepted for extraction.
const MaxFileSize = 10 << 20

var allowedMimes = map[string]bool{
	"application/pdf": true,
	"image/jpeg":      true,
	"image/jpg":       true,
	"image/png":       true,
}

// File is one uploaded document.
type File struct {
	Name string
	Mime string
	Data []byte
}

// Failure records why a file produced no extracted payslip.
type Failure struct {
	File  string `json:"file"`
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

type BatchResult struct {
	Succeeded []Payslip `json:"succeeded"`
	Failed    []Failure `json:"failed"`
}

// Manual returns the placeholders created for files that hit the quota.
func (r BatchResult) Manual() []Payslip {
	var out []Payslip
	for _, p := range r.Succeeded {
		if p.Manual {
			out = append(out, p)
		}
	}
	return out
}

// ValidateFile checks size and mime type.
func ValidateFile(f File) error {
	if len(f.Data) == 0 {
		return apperr.Invalid("file", "empty file")
	}
	if len(f.Data) > MaxFileSize {
		return apperr.Invalid("file", "file exceeds 10MB")
	}
	mime := strings.ToLower(strings.TrimSpace(strings.SplitN(f.Mime, ";", 2)[0]))
	if !allowedMimes[mime] {
		return apperr.Invalid("file", fmt.Sprintf("unsupported type %q", f.Mime))
	}
	return nil
}

// ProcessBatch extracts every file in order. A per-file failure never aborts the batch. When the
// quota is exhausted the file gets a manual-entry template and is also listed as failed.
func ProcessBatch(ctx context.Context, ex Extractor, files []File) BatchResult {
	res := BatchResult{Succeeded: []Payslip{}, Failed: []Failure{}}
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			res.Failed = append(res.Failed, Failure{File: f.Name, Error: err.Error()})
			continue
		}
		if err := ValidateFile(f); err != nil {
			res.Failed = append(res.Failed, Failure{File: f.Name, Error: err.Error()})
			continue
		}

		payslips, err := ex.Extract(ctx, f.Data, f.Mime)
		if err == nil {
			payslips, err = validated(payslips)
		}
		if err != nil {
			fail := Failure{File: f.Name, Error: err.Error()}
			if code, ok := apperr.ExternalCode(err); ok {
				fail.Code = string(code)
			}
			res.Failed = append(res.Failed, fail)
			if apperr.IsQuota(err) {
				log.Warn("batch:manual-template", slog.String("file", f.Name), slog.String("code", fail.Code))
				res.Succeeded = append(res.Succeeded, ManualTemplate(f.Name))
			} else {
				log.Error("batch:extract", slog.String("file", f.Name), slog.String("err", err.Error()))
			}
			continue
		}
		for i := range payslips {
			payslips[i].File = f.Name
		}
		res.Succeeded = append(res.Succeeded, payslips...)
	}
	log.Info("batch:done", slog.Int("files", len(files)), slog.Int("succeeded", len(res.Succeeded)), slog.Int("failed", len(res.Failed)))
	return res
}

var errNoPayslip = errors.New("no_payslip_found")

func validated(payslips []Payslip) ([]Payslip, error) {
	if len(payslips) == 0 {
		return nil, errNoPayslip
	}
	for _, p := range payslips {
		if err := p.Validate(); err != nil {
			return nil, err
		}
	}
	return payslips, nil
}
