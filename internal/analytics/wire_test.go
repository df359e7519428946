package analytics

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/signalsfoundry/ndvi-overlay/model"
)

func TestEncodeRequestWrapsSingleRing(t *testing.T) {
	region := model.Region{Coordinates: []model.Coordinate{
		{Lng: -60.5, Lat: -31.5},
		{Lng: -60.4, Lat: -31.5},
		{Lng: -60.4, Lat: -31.4},
		{Lng: -60.5, Lat: -31.4},
	}}

	body, err := EncodeRequest(region)
	if err != nil {
		t.Fatalf("EncodeRequest: %v", err)
	}

	var decoded struct {
		Coordinates [][][]float64 `json:"coordinates"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatalf("unmarshal request %s: %v", body, err)
	}
	if len(decoded.Coordinates) != 1 {
		t.Fatalf("rings = %d, want 1", len(decoded.Coordinates))
	}
	ring := decoded.Coordinates[0]
	if len(ring) != 4 {
		t.Fatalf("ring length = %d, want 4", len(ring))
	}
	if ring[1][0] != -60.4 || ring[1][1] != -31.5 {
		t.Fatalf("vertex 1 = %v, want [-60.4 -31.5]", ring[1])
	}
}

func TestDecodeSeries(t *testing.T) {
	jan := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name   string
		body   string
		want   []model.SeriesPoint
		decErr bool
	}{
		{
			name: "plain array",
			body: `[{"fecha":"2024-01-01","NDVI":0.55},{"fecha":"2024-02-01","NDVI":0.61}]`,
			want: []model.SeriesPoint{{Date: jan, Value: 0.55}, {Date: feb, Value: 0.61}},
		},
		{
			name: "double encoded with datetimes and extra fields",
			body: `"[{\"fecha\": \"2024-02-01T14:03:11\", \"NDVI\": 0.61, \"recurso_forrajero\": null}, {\"fecha\": \"2024-01-01T10:00:00\", \"NDVI\": 0.55}]"`,
			want: []model.SeriesPoint{{Date: jan, Value: 0.55}, {Date: feb, Value: 0.61}},
		},
		{
			name: "rfc3339 keeps written date",
			body: `[{"fecha":"2024-01-01T23:30:00-03:00","NDVI":0.2}]`,
			want: []model.SeriesPoint{{Date: jan, Value: 0.2}},
		},
		{
			name: "null ndvi skipped",
			body: `[{"fecha":"2024-01-01","NDVI":null},{"fecha":"2024-02-01","NDVI":0.61}]`,
			want: []model.SeriesPoint{{Date: feb, Value: 0.61}},
		},
		{
			name: "same day images averaged",
			body: `[{"fecha":"2024-01-01T13:45:10","NDVI":0.25},{"fecha":"2024-02-01","NDVI":0.61},{"fecha":"2024-01-01T13:45:30","NDVI":0.75}]`,
			want: []model.SeriesPoint{{Date: jan, Value: 0.5}, {Date: feb, Value: 0.61}},
		},
		{
			name: "same day with null keeps the valued image",
			body: `[{"fecha":"2024-02-01T10:00:00","NDVI":null},{"fecha":"2024-02-01T10:00:20","NDVI":0.61}]`,
			want: []model.SeriesPoint{{Date: feb, Value: 0.61}},
		},
		{
			name: "empty array",
			body: `[]`,
			want: []model.SeriesPoint{},
		},
		{name: "object", body: `{"detail":"bad"}`, decErr: true},
		{name: "null", body: `null`, decErr: true},
		{name: "truncated", body: `[{"fecha":"2024-01-01","NDVI":0.5`, decErr: true},
		{name: "bad date", body: `[{"fecha":"yesterday","NDVI":0.5}]`, decErr: true},
		{name: "missing date", body: `[{"NDVI":0.5}]`, decErr: true},
		{name: "string value", body: `[{"fecha":"2024-01-01","NDVI":"0.5"}]`, decErr: true},
		{name: "empty body", body: ``, decErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DecodeSeries([]byte(tc.body))
			if tc.decErr {
				if !errors.Is(err, ErrDecode) {
					t.Fatalf("err = %v, want ErrDecode", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeSeries: %v", err)
			}
			if len(got) != len(tc.want) {
				t.Fatalf("len = %d, want %d (%+v)", len(got), len(tc.want), got)
			}
			for i := range got {
				if !got[i].Date.Equal(tc.want[i].Date) || got[i].Value != tc.want[i].Value {
					t.Fatalf("point %d = %+v, want %+v", i, got[i], tc.want[i])
				}
			}
		})
	}
}

func TestFailureMatchesKindAndCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := error(&Failure{Kind: NetworkError, Err: cause})

	if !errors.Is(err, ErrNetwork) || !errors.Is(err, cause) {
		t.Fatalf("network failure does not match sentinel and cause: %v", err)
	}
	if errors.Is(err, ErrDecode) {
		t.Fatalf("network failure matched ErrDecode")
	}
	if KindOf(err) != NetworkError {
		t.Fatalf("KindOf = %v, want NetworkError", KindOf(err))
	}
	if KindOf(cause) != 0 {
		t.Fatalf("KindOf(plain error) = %v, want 0", KindOf(cause))
	}
}

func TestConfigEndpoint(t *testing.T) {
	cases := []struct{ base, want string }{
		{base: "", want: "http://127.0.0.1:8000/api/ndvi/"},
		{base: "http://backend:8000", want: "http://backend:8000/api/ndvi/"},
		{base: "https://example.org/prefix/", want: "https://example.org/prefix/api/ndvi/"},
	}
	for _, tc := range cases {
		got, err := Config{BaseURL: tc.base}.Endpoint()
		if err != nil {
			t.Fatalf("Endpoint(%q): %v", tc.base, err)
		}
		if got != tc.want {
			t.Fatalf("Endpoint(%q) = %q, want %q", tc.base, got, tc.want)
		}
	}
	if _, err := (Config{BaseURL: "ftp://x"}).Endpoint(); err == nil {
		t.Fatalf("expected error for non-http scheme")
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("NDVI_API_URL", "http://backend:9000")
	t.Setenv("NDVI_API_TIMEOUT", "15s")
	cfg := ConfigFromEnv()
	if cfg.BaseURL != "http://backend:9000" || cfg.Timeout != 15*time.Second {
		t.Fatalf("cfg = %+v", cfg)
	}
}
