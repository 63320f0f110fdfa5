package api

import (
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/cloudratio/advisor-report-backend/internal/types"
)

func TestMapQueryParameters(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	type tests struct {
		name     string
		qinputs  map[string]string
		qoutputs map[string]interface{}
		wantErr  bool
	}

	var all_tests = []tests{
		{
			name:    "When category and impact filters are provided",
			qinputs: map[string]string{"category": "Cost", "impact": "High"},
			qoutputs: map[string]interface{}{
				"category": types.CategoryCost,
				"impact":   types.ImpactHigh,
			},
		},
		{
			name:    "When the legacy high availability label is used",
			qinputs: map[string]string{"category": "High Availability"},
			qoutputs: map[string]interface{}{
				"category": types.CategoryReliability,
			},
		},
		{
			name:    "When a source filter is provided",
			qinputs: map[string]string{"source": "csv_export"},
			qoutputs: map[string]interface{}{
				"source": types.SourceCSVExport,
			},
		},
		{
			name:    "When the category label is unknown",
			qinputs: map[string]string{"category": "Nonsense"},
			wantErr: true,
		},
		{
			name:    "When the record set filter is not a UUID",
			qinputs: map[string]string{"record_set_id": "not-a-uuid"},
			wantErr: true,
		},
	}

	for _, tt := range all_tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.qinputs {
				c.QueryParams().Add(k, v)
			}
			result, err := MapQueryParameters(c)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected an error, got %v", result)
				}
			} else {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				if reflect.DeepEqual(result, tt.qoutputs) != true {
					t.Errorf("expected %v, got %v", tt.qoutputs, result)
				}
			}
			for k := range c.QueryParams() {
				delete(c.QueryParams(), k)
			}
		})
	}
}

func TestWindowFromParams(t *testing.T) {
	e := echo.New()

	newContext := func(target string) echo.Context {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		rec := httptest.NewRecorder()
		return e.NewContext(req, rec)
	}

	t.Run("explicit dates give an inclusive end", func(t *testing.T) {
		c := newContext("/?start_date=2026-01-01&end_date=2026-01-31")
		window, err := windowFromParams(c)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := window.Start.Format(timeLayout); got != "2026-01-01" {
			t.Errorf("start = %s, expected 2026-01-01", got)
		}
		// End is exclusive, so the requested last day must fall inside.
		if got := window.End.Format(timeLayout); got != "2026-02-01" {
			t.Errorf("end = %s, expected 2026-02-01", got)
		}
	})

	t.Run("absent dates fall back to the configured window", func(t *testing.T) {
		c := newContext("/")
		window, err := windowFromParams(c)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !window.End.After(window.Start) {
			t.Errorf("default window is empty: %v .. %v", window.Start, window.End)
		}
	})

	t.Run("malformed date is rejected", func(t *testing.T) {
		c := newContext("/?start_date=01-02-2026")
		if _, err := windowFromParams(c); err == nil {
			t.Error("expected an error for a malformed start_date")
		}
	})

	t.Run("inverted range is rejected", func(t *testing.T) {
		c := newContext("/?start_date=2026-03-01&end_date=2026-02-01")
		if _, err := windowFromParams(c); err == nil {
			t.Error("expected an error for an inverted window")
		}
	})
}
