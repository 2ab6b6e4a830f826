package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"strings"
	"time"

	"caderneta_server/core/domain"
	"caderneta_server/core/port/out"
	"caderneta_server/pkg/apperr"

	"github.com/google/uuid"
)

const (
	exportPrefix     = "export:"
	DefaultExportTTL = 24 * time.Hour
)

var exportHeader = []string{"data", "tipo", "valor", "categoria", "forma de pagamento", "descrição"}

// CSVExporter implements out.Exporter. Spreadsheets are kept in a TTL store
// and served back by token.
type CSVExporter struct {
	store    out.KeyValueStore
	baseURL  string
	ttl      time.Duration
	loc      *time.Location
	newToken func() string
}

var _ out.Exporter = (*CSVExporter)(nil)

// NewCSVExporter creates a new CSV exporter
func NewCSVExporter(store out.KeyValueStore, baseURL string, loc *time.Location) *CSVExporter {
	if loc == nil {
		loc = time.UTC
	}
	return &CSVExporter{
		store:    store,
		baseURL:  strings.TrimRight(baseURL, "/"),
		ttl:      DefaultExportTTL,
		loc:      loc,
		newToken: uuid.NewString,
	}
}

// Export stores the CSV for DefaultExportTTL and returns its download link.
func (e *CSVExporter) Export(ctx context.Context, _ *domain.User, _ domain.Interval, txs []*domain.Transaction) (string, error) {
	data, err := EncodeCSV(txs, e.loc)
	if err != nil {
		return "", apperr.Internal("encode spreadsheet").WithError(err)
	}
	token := e.newToken()
	if err := e.store.Set(ctx, exportPrefix+token, data, e.ttl); err != nil {
		return "", apperr.Internal("store spreadsheet").WithError(err)
	}
	return e.baseURL + "/" + token, nil
}

// Load returns a stored spreadsheet.
func (e *CSVExporter) Load(ctx context.Context, token string) ([]byte, bool, error) {
	if _, err := uuid.Parse(token); err != nil {
		return nil, false, nil
	}
	return e.store.Get(ctx, exportPrefix+token)
}

// EncodeCSV writes txs as a semicolon separated sheet with decimal commas.
func EncodeCSV(txs []*domain.Transaction, loc *time.Location) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("\uFEFF")
	w := csv.NewWriter(&buf)
	w.Comma = ';'

	if err := w.Write(exportHeader); err != nil {
		return nil, err
	}
	for _, tx := range txs {
		record := []string{
			tx.OccurredAt.In(loc).Format("02/01/2006"),
			tx.Type.Noun(),
			strings.Replace(tx.Amount.StringFixed(2), ".", ",", 1),
			tx.Category,
			string(tx.PaymentMethod),
			tx.Description,
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}
