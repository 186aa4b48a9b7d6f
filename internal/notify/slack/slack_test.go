package slack

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/agrishikyo-relay/internal/market"
)

func sampleTable() market.Table {
	return market.Table{
		Headers: []string{"取引日", "取引年月", "品目", "都市", "11/04"},
		Rows: []market.Record{
			{"20241104", "202411", "ジャガイモ", "東京都", "150"},
			{"20241104", "202411", "ジャガイモ", "大阪市", "140"},
		},
	}
}

var testIntro = Intro{
	SiteURL:  "https://www.agrishikyo.jp/",
	SheetURL: "https://docs.example.test/sheet",
}

func TestFormatBodyExact(t *testing.T) {
	t.Parallel()

	got := FormatBody(market.Table{
		Headers: []string{"A", "B"},
		Rows:    []market.Record{{"x", "y"}},
	})
	require.Equal(t, "A\t \t|B\n x\t \t|y\n", got)
}

func TestFormatBodyHeadersOnly(t *testing.T) {
	t.Parallel()

	require.Equal(t, "A\t \t|B\n", FormatBody(market.Table{Headers: []string{"A", "B"}}))
}

func TestFormatMessage(t *testing.T) {
	t.Parallel()

	got, err := testIntro.FormatMessage(sampleTable())
	require.NoError(t, err)
	want := "ジャガイモのキロ平均価格データ：<https://www.agrishikyo.jp/|netアグリ市況Webページ> ／ <https://docs.example.test/sheet|SHEET>\n\n" +
		"取引日\t \t|取引年月\t \t|品目\t \t|都市\t \t|11/04\n" +
		" 20241104\t \t|202411\t \t|ジャガイモ\t \t|東京都\t \t|150\n" +
		" 20241104\t \t|202411\t \t|ジャガイモ\t \t|大阪市\t \t|140\n"
	require.Equal(t, want, got)
}

func TestFormatMessageEmptyTable(t *testing.T) {
	t.Parallel()

	_, err := testIntro.FormatMessage(market.Table{Headers: []string{"品目"}})
	require.ErrorIs(t, err, ErrEmptyTable)
}

type countingObserver struct {
	mu    sync.Mutex
	codes []int
}

func (o *countingObserver) ObserveWebhook(code int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.codes = append(o.codes, code)
}

func TestNotifyPostsOnce(t *testing.T) {
	t.Parallel()

	var (
		mu       sync.Mutex
		requests int
		raw      string
		method   string
		ctype    string
		payload  Payload
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		defer mu.Unlock()
		requests++
		raw = string(body)
		_ = json.Unmarshal(body, &payload)
		method = r.Method
		ctype = r.Header.Get("Content-Type")
		_, _ = io.WriteString(w, "ok")
	}))
	defer srv.Close()

	obs := &countingObserver{}
	sender := NewSender(Config{
		WebhookURL: srv.URL,
		IconEmoji:  ":memo:",
		Username:   "市場データ",
		Intro:      testIntro,
	}, obs, nil)

	require.NoError(t, sender.Notify(context.Background(), sampleTable()))

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 1, requests)
	require.Equal(t, http.MethodPost, method)
	require.Contains(t, ctype, "application/json")
	require.Equal(t, ":memo:", payload.IconEmoji)
	require.Equal(t, "市場データ", payload.Username)
	want, err := testIntro.FormatMessage(sampleTable())
	require.NoError(t, err)
	require.Equal(t, want, payload.Text)
	require.Contains(t, raw, "<https://www.agrishikyo.jp/|")
	require.Equal(t, []int{200}, obs.codes)
}

func TestSendNon2xx(t *testing.T) {
	t.Parallel()

	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, "invalid_token")
	}))
	defer srv.Close()

	err := NewSender(Config{WebhookURL: srv.URL}, nil, nil).Send(context.Background(), "hello")

	var werr *WebhookError
	require.True(t, errors.As(err, &werr))
	require.Equal(t, http.StatusForbidden, werr.StatusCode)
	require.Equal(t, "invalid_token", werr.Body)
	require.Equal(t, int32(1), requests.Load())
}

func TestSendTransportError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	obs := &countingObserver{}
	err := NewSender(Config{WebhookURL: url}, obs, nil).Send(context.Background(), "hello")
	require.Error(t, err)
	require.Equal(t, []int{0}, obs.codes)
}
