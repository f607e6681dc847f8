package sheets

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"
)

type fakeGoogle struct {
	mu       sync.Mutex
	files    []map[string]string
	titles   []string
	requests []string
	bodies   map[string]string
	status   int
}

func (g *fakeGoogle) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.mu.Lock()
	defer g.mu.Unlock()
	body, _ := io.ReadAll(r.Body)
	key := r.Method + " " + r.URL.EscapedPath()
	g.requests = append(g.requests, key+"?"+r.URL.RawQuery)
	g.bodies[key] = string(body)

	if g.status != 0 {
		w.WriteHeader(g.status)
		_, _ = w.Write([]byte(`{"error":{"code":429,"message":"Quota exceeded"}}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	switch {
	case strings.HasPrefix(r.URL.Path, "/drive/v3/files"):
		_ = json.NewEncoder(w).Encode(map[string]any{"files": g.files})
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/v4/spreadsheets/"):
		var sheets []map[string]any
		for _, title := range g.titles {
			sheets = append(sheets, map[string]any{"properties": map[string]any{"title": title}})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"sheets": sheets})
	default:
		_, _ = w.Write([]byte(`{}`))
	}
}

func newGoogleTestOpener(t *testing.T, g *fakeGoogle) *GoogleOpener {
	t.Helper()
	g.bodies = map[string]string{}
	ts := httptest.NewServer(g)
	t.Cleanup(ts.Close)

	ctx := context.Background()
	sheetsSvc, err := gsheets.NewService(ctx,
		option.WithEndpoint(ts.URL+"/"),
		option.WithoutAuthentication(),
		option.WithHTTPClient(ts.Client()),
	)
	require.NoError(t, err)
	driveSvc, err := drive.NewService(ctx,
		option.WithEndpoint(ts.URL+"/drive/v3/"),
		option.WithoutAuthentication(),
		option.WithHTTPClient(ts.Client()),
	)
	require.NoError(t, err)
	return NewGoogleOpenerWithServices(sheetsSvc, driveSvc)
}

func TestGoogleOpenerWritesWorksheet(t *testing.T) {
	t.Parallel()

	g := &fakeGoogle{
		files:  []map[string]string{{"id": "sheet-123", "name": "SDSU Recruiting"}},
		titles: []string{"Sheet1", "Archive"},
	}
	opener := newGoogleTestOpener(t, g)

	ws, err := opener.Open(context.Background(), "SDSU Recruiting", "Sheet1")
	require.NoError(t, err)
	require.NoError(t, ws.Clear(context.Background()))
	require.NoError(t, ws.Update(context.Background(), "A1", [][]any{{"Name"}, {"=HYPERLINK(\"x\",\"y\")"}}))

	g.mu.Lock()
	defer g.mu.Unlock()
	require.Len(t, g.requests, 4)
	assert.Contains(t, g.requests[0], "/drive/v3/files")
	assert.Contains(t, g.requests[0], "SDSU+Recruiting")
	assert.Contains(t, g.requests[1], "/v4/spreadsheets/sheet-123")
	assert.Contains(t, g.requests[2], "POST /v4/spreadsheets/sheet-123/values/")
	assert.Contains(t, g.requests[2], ":clear")
	assert.Contains(t, g.requests[3], "PUT /v4/spreadsheets/sheet-123/values/")
	assert.Contains(t, g.requests[3], "valueInputOption=USER_ENTERED")

	var update struct {
		Values [][]any `json:"values"`
	}
	for key, body := range g.bodies {
		if strings.HasPrefix(key, "PUT ") {
			require.NoError(t, json.Unmarshal([]byte(body), &update))
		}
	}
	assert.Equal(t, []any{"Name"}, update.Values[0])
}

func TestGoogleOpenerSpreadsheetNotFound(t *testing.T) {
	t.Parallel()

	opener := newGoogleTestOpener(t, &fakeGoogle{})
	_, err := opener.Open(context.Background(), "Nope", "Sheet1")
	require.ErrorIs(t, err, ErrSpreadsheetNotFound)
}

func TestGoogleOpenerWorksheetNotFound(t *testing.T) {
	t.Parallel()

	opener := newGoogleTestOpener(t, &fakeGoogle{
		files:  []map[string]string{{"id": "x"}},
		titles: []string{"Other"},
	})
	_, err := opener.Open(context.Background(), "Recruits", "Sheet1")
	require.ErrorIs(t, err, ErrWorksheetNotFound)
}

func TestGoogleOpenerQuotaErrorIsDetected(t *testing.T) {
	t.Parallel()

	opener := newGoogleTestOpener(t, &fakeGoogle{status: http.StatusTooManyRequests})
	_, err := opener.Open(context.Background(), "Recruits", "Sheet1")
	require.Error(t, err)
	assert.True(t, IsQuota(err))
}

func TestQuoteTitle(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "'Sheet1'", quoteTitle("Sheet1"))
	assert.Equal(t, "'Coach''s Board'", quoteTitle("Coach's Board"))
	assert.Equal(t, `O\'Brien \\ Co`, escapeQuery(`O'Brien \ Co`))
}
