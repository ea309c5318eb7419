package extraction

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Scan360AI/rnd-credit-manager/internal/apperr"
	json "github.com/goccy/go-json"
)

var log = slog.Default().With(slog.String("layer", "service"), slog.String("service", "extraction"))

const (
	DefaultEndpoint = "https://generativelanguage.googleapis.com/v1beta/models/{model}:generateContent"
	DefaultModel    = "gemini-1.5-flash"
	service         = "gemini"
)

const payslipPrompt = `Analizza questa busta paga e estrai i seguenti dati in formato JSON:
{
  "nome_completo": "Nome e cognome del dipendente",
  "codice_fiscale": "Codice fiscale",
  "qualifica": "Qualifica o ruolo",
  "mese": "MM/YYYY",
  "ore_mensili": numero ore lavorate nel mese,
  "retribuzione_lorda": importo lordo mensile,
  "costo_azienda": costo totale per l'azienda (se presente)
}

Se il documento contiene più buste paga restituisci un array JSON con un oggetto per ciascuna.
Se non trovi un dato, metti null. Rispondi SOLO con il JSON, senza altre spiegazioni.`

const invoicePrompt = `Analizza questa fattura e determina se è ammissibile per il credito R&S. Estrai:
- Fornitore
- Numero fattura
- Data
- Importo totale
- Descrizione servizi/prodotti
- È ammissibile per R&S? (true/false)
- Motivazione ammissibilità

Cerca keywords come: ricerca, sviluppo, innovazione, consulenza tecnica, prototipazione, test, analisi.`

var (
	ErrEmptyResponse  = errors.New("empty_response")
	ErrInvalidPayload = errors.New("invalid_payload")
)

// Extractor reads the payslips contained in one document. A multi-page PDF may hold several.
type Extractor interface {
	Extract(ctx context.Context, data []byte, mime string) ([]Payslip, error)
}

// Analyzer returns a free-text analysis of an invoice document.
type Analyzer interface {
	Analyze(ctx context.Context, data []byte, mime string) (string, error)
}

// Waiter gates outgoing calls; *ratelimit.Limiter implements it.
type Waiter interface {
	Wait(ctx context.Context) error
}

// GeminiClient calls the generateContent endpoint with inline document data.
type GeminiClient struct {
	Endpoint string
	Model    string
	APIKey   string
	HTTP     *http.Client
	Limiter  Waiter
}

func NewGeminiClient(apiKey, model, endpoint string, limiter Waiter) *GeminiClient {
	if model == "" {
		model = DefaultModel
	}
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &GeminiClient{
		Endpoint: endpoint,
		Model:    model,
		APIKey:   apiKey,
		HTTP:     &http.Client{Timeout: 60 * time.Second},
		Limiter:  limiter,
	}
}

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type content struct {
	Parts []part `json:"parts"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	TopK            int     `json:"topK"`
	TopP            float64 `json:"topP"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func (c *GeminiClient) url() (string, error) {
	u, err := url.Parse(strings.ReplaceAll(c.Endpoint, "{model}", c.Model))
	if err != nil {
		return "", fmt.Errorf("gemini endpoint: %w", err)
	}
	q := u.Query()
	q.Set("key", c.APIKey)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *GeminiClient) generate(ctx context.Context, prompt string, data []byte, mime string) (string, error) {
	if c.APIKey == "" {
		return "", apperr.External(service, apperr.CodeInvalidCredentials, errors.New("api key not configured"))
	}
	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return "", err
		}
	}

	body, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{
			{Text: prompt},
			{InlineData: &inlineData{MimeType: mime, Data: base64.StdEncoding.EncodeToString(data)}},
		}}},
		GenerationConfig: generationConfig{Temperature: 0.1, TopK: 1, TopP: 0.8, MaxOutputTokens: 1024},
	})
	if err != nil {
		return "", fmt.Errorf("gemini encode: %w", err)
	}
	endpoint, err := c.url()
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("gemini request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := c.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		log.Error("generate:transport", slog.String("err", err.Error()))
		return "", apperr.External(service, apperr.CodeUpstream, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", apperr.External(service, apperr.CodeUpstream, err)
	}
	log.Debug("generate:done", slog.Int("status", resp.StatusCode), slog.Duration("took", time.Since(start)))

	if resp.StatusCode != http.StatusOK {
		return "", statusError(resp.StatusCode, raw)
	}

	var gr generateResponse
	if err := json.Unmarshal(raw, &gr); err != nil {
		return "", apperr.External(service, apperr.CodeUpstream, fmt.Errorf("decode response: %w", err))
	}
	if len(gr.Candidates) == 0 || len(gr.Candidates[0].Content.Parts) == 0 {
		return "", apperr.External(service, apperr.CodeUpstream, ErrEmptyResponse)
	}
	text := gr.Candidates[0].Content.Parts[0].Text
	if strings.TrimSpace(text) == "" {
		return "", apperr.External(service, apperr.CodeUpstream, ErrEmptyResponse)
	}
	return text, nil
}

func statusError(status int, raw []byte) error {
	var ae apiError
	_ = json.Unmarshal(raw, &ae)
	msg := ae.Error.Message
	if msg == "" {
		msg = http.StatusText(status)
	}
	switch {
	case status == http.StatusTooManyRequests:
		log.Warn("generate:quota", slog.String("msg", msg))
		return apperr.External(service, apperr.CodeQuotaExceeded, errors.New(msg))
	case status == http.StatusBadRequest && strings.Contains(msg, "API_KEY_INVALID"):
		log.Warn("generate:invalid-key")
		return apperr.External(service, apperr.CodeInvalidCredentials, errors.New(msg))
	}
	log.Error("generate:status", slog.Int("status", status), slog.String("msg", msg))
	return apperr.External(service, apperr.CodeUpstream, fmt.Errorf("status %d: %s", status, msg))
}

// Extract asks the model for payslip fields and decodes the first JSON object or array in its reply.
func (c *GeminiClient) Extract(ctx context.Context, data []byte, mime string) ([]Payslip, error) {
	text, err := c.generate(ctx, payslipPrompt, data, mime)
	if err != nil {
		return nil, err
	}
	return DecodePayslips(text)
}

// Analyze returns the model's free-text invoice analysis.
func (c *GeminiClient) Analyze(ctx context.Context, data []byte, mime string) (string, error) {
	return c.generate(ctx, invoicePrompt, data, mime)
}

// DecodePayslips extracts the JSON payload from a model reply. The reply may wrap it in prose or
// code fences and may carry a single object or an array.
func DecodePayslips(text string) ([]Payslip, error) {
	payload := firstJSON(text)
	if payload == "" {
		return nil, apperr.External(service, apperr.CodeUpstream, ErrInvalidPayload)
	}
	if payload[0] == '[' {
		var out []Payslip
		if err := json.Unmarshal([]byte(payload), &out); err != nil {
			return nil, apperr.External(service, apperr.CodeUpstream, fmt.Errorf("%w: %v", ErrInvalidPayload, err))
		}
		return out, nil
	}
	var p Payslip
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return nil, apperr.External(service, apperr.CodeUpstream, fmt.Errorf("%w: %v", ErrInvalidPayload, err))
	}
	return []Payslip{p}, nil
}

// firstJSON returns the span from the first '{' or '[' to its last matching closer.
func firstJSON(text string) string {
	start := strings.IndexAny(text, "{[")
	if start < 0 {
		return ""
	}
	closer := "}"
	if text[start] == '[' {
		closer = "]"
	}
	end := strings.LastIndex(text, closer)
	if end < start {
		return ""
	}
	return text[start : end+1]
}
