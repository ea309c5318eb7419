package handlers

import (
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"slices"
	"strings"

	"github.com/Scan360AI/rnd-credit-manager/httpx"
	"github.com/Scan360AI/rnd-credit-manager/internal/apperr"
	"github.com/Scan360AI/rnd-credit-manager/internal/costs"
	"github.com/Scan360AI/rnd-credit-manager/internal/engine"
	"github.com/Scan360AI/rnd-credit-manager/internal/extraction"
	"github.com/Scan360AI/rnd-credit-manager/internal/models"
	"github.com/Scan360AI/rnd-credit-manager/validation"
)

const (
	maxUploadFiles = 50
	maxUploadSize  = maxUploadFiles * extraction.MaxFileSize
)

var errAIDisabled = apperr.External("gemini", apperr.CodeDisabled, nil)

func readUpload(fh *multipart.FileHeader) (extraction.File, error) {
	f, err := fh.Open()
	if err != nil {
		return extraction.File{}, err
	}
	defer f.Close()
	// one byte over the limit lets ValidateFile report the size
	data, err := io.ReadAll(io.LimitReader(f, extraction.MaxFileSize+1))
	if err != nil {
		return extraction.File{}, err
	}
	mime := fh.Header.Get("Content-Type")
	if mime == "" || mime == "application/octet-stream" {
		mime = http.DetectContentType(data)
	}
	return extraction.File{Name: filepath.Base(fh.Filename), Mime: mime, Data: data}, nil
}

func parseUploads(w http.ResponseWriter, r *http.Request, field string) ([]extraction.File, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return nil, apperr.Invalid(field, "multipart form expected")
	}
	headers := r.MultipartForm.File[field]
	if len(headers) == 0 {
		return nil, apperr.Invalid(field, "required")
	}
	if len(headers) > maxUploadFiles {
		return nil, apperr.Invalid(field, "too many files")
	}
	files := make([]extraction.File, 0, len(headers))
	for _, fh := range headers {
		f, err := readUpload(fh)
		if err != nil {
			return nil, apperr.Invalid(field, "unreadable file "+fh.Filename)
		}
		files = append(files, f)
	}
	return files, nil
}

// PayslipResponse reports the batch outcome and what was stored.
type PayslipResponse struct {
	Batch  extraction.BatchResult `json:"batch"`
	Groups int                    `json:"groups"`
	Ingest engine.IngestResult    `json:"ingest"`
}

// UploadPayslips extracts every uploaded payslip, groups them per employee and stores
// the months. Files over quota come back as manual templates flagged for review.
func (h *Handler) UploadPayslips(w http.ResponseWriter, r *http.Request) {
	if !h.ai.Enabled() {
		httpx.Error(w, r, errAIDisabled)
		return
	}
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	files, err := parseUploads(w, r, "files")
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	batch := extraction.ProcessBatch(r.Context(), h.ai.Extractor, files)
	groups := extraction.GroupPayslips(batch.Succeeded)
	res := ws.IngestGroups(r.Context(), groups)
	log.Info("upload-payslips:done", slog.Int("files", len(files)), slog.Int("groups", len(groups)),
		slog.Int("created", len(res.Created)), slog.Int("updated", len(res.Updated)))
	httpx.JSON(w, http.StatusOK, PayslipResponse{Batch: batch, Groups: len(groups), Ingest: res})
}

// AnalyzeInvoice reads one invoice document and stores what the analysis found.
func (h *Handler) AnalyzeInvoice(w http.ResponseWriter, r *http.Request) {
	if h.ai.Analyzer == nil {
		httpx.Error(w, r, errAIDisabled)
		return
	}
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	files, err := parseUploads(w, r, "file")
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	f := files[0]
	if err := extraction.ValidateFile(f); err != nil {
		httpx.Error(w, r, err)
		return
	}
	text, err := h.ai.Analyzer.Analyze(r.Context(), f.Data, f.Mime)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	defaults := models.Invoice{Number: strings.TrimSuffix(f.Name, filepath.Ext(f.Name))}
	parsed := extraction.ParseInvoiceAnalysis(text, defaults)
	inv, err := ws.AddInvoice(r.Context(), engine.PatchFrom(parsed))
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"invoice": inv, "analysis": text})
}

func (h *Handler) AIStatus(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"enabled": h.ai.Enabled(), "model": h.ai.Model}
	if h.ai.Limiter != nil {
		resp["quota"] = h.ai.Limiter.Status()
	}
	httpx.JSON(w, http.StatusOK, resp)
}

type RALRequest struct {
	RAL    float64 `json:"ral" validate:"gt=0"`
	Sector string  `json:"sector"`
}

// CostFromRAL returns the statutory employer-cost breakdown of an annual salary.
func (h *Handler) CostFromRAL(w http.ResponseWriter, r *http.Request) {
	var in RALRequest
	if err := httpx.Decode(r, &in); err != nil {
		httpx.Error(w, r, err)
		return
	}
	v := validation.Violations{}
	validation.Struct(in, v)
	if in.Sector != "" && !slices.Contains(costs.Sectors(), in.Sector) {
		v["sector"] = "unknown sector"
	}
	if err := v.Err(); err != nil {
		httpx.Error(w, r, err)
		return
	}
	rates := costs.SectorRates(in.Sector, h.rates)
	httpx.JSON(w, http.StatusOK, map[string]any{
		"breakdown":      costs.FromRAL(in.RAL, rates).Rounded(),
		"quick_estimate": costs.QuickEstimate(in.RAL),
		"rates":          rates,
	})
}
