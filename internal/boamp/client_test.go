package boamp_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ltourillon/boamp-scraper/internal/boamp"
)

// minimal eForms notice: one lot, one organization, one winning lot result.
const eformsNotice = `{
  "EFORMS": {
    "ContractAwardNotice": {
      "cac:ProcurementProjectLot": {
        "cbc:ID": {"#text": "LOT-0001"},
        "cac:ProcurementProject": {"cbc:Name": {"#text": "plomberie travaux"}}
      },
      "ext:UBLExtensions": {"ext:UBLExtension": {"ext:ExtensionContent": {"efext:EformsExtension": {
        "efac:Organizations": {"efac:Organization": {"efac:Company": {
          "cac:PartyIdentification": {"cbc:ID": {"#text": "ORG-0001"}},
          "cac:PartyName": {"cbc:Name": {"#text": "ACME Plomberie"}},
          "cac:PostalAddress": {"cbc:CityName": {"#text": "Lyon"}}
        }}},
        "efac:TenderingParty": {"cbc:ID": {"#text": "TPA-0001"}, "efac:Tenderer": {"cbc:ID": {"#text": "ORG-0001"}}},
        "efac:NoticeResult": {
          "efac:LotTender": {"cbc:ID": {"#text": "TEN-0001"}, "efac:TenderingParty": {"cbc:ID": {"#text": "TPA-0001"}}},
          "efac:LotResult": {
            "cbc:TenderResultCode": {"#text": "selec-w"},
            "efac:TenderLot": {"cbc:ID": {"#text": "LOT-0001"}},
            "efac:LotTender": {"cbc:ID": {"#text": "TEN-0001"}}
          }
        }
      }}}}
    }
  }
}`

func recordsBody(t *testing.T, nhits int, fields ...map[string]any) string {
	t.Helper()
	records := make([]map[string]any, 0, len(fields))
	for _, f := range fields {
		records = append(records, map[string]any{"fields": f})
	}
	body, err := json.Marshal(map[string]any{"nhits": nhits, "records": records})
	require.NoError(t, err)
	return string(body)
}

func TestNoticeIDFromURL(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{url: "https://www.boamp.fr/pages/avis/?q=idweb:%2224-123456%22", want: "24-123456"},
		{url: "https://www.boamp.fr/avis/detail/23-98765", want: "23-98765"},
		{url: "https://www.boamp.fr/pages/recherche/", want: ""},
		{url: "", want: ""},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, boamp.NoticeIDFromURL(tt.url), tt.url)
	}
}

func TestIsSearchURL(t *testing.T) {
	require.True(t, boamp.IsSearchURL("https://www.boamp.fr/pages/recherche/?refine.descripteur_libelle=Plomberie"))
	require.False(t, boamp.IsSearchURL("https://www.boamp.fr/pages/avis/?q=idweb:%2224-123456%22"))
}

func TestFetchNoticeDecodesStringDonnees(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "boamp", r.URL.Query().Get("dataset"))
		require.Equal(t, `idweb:"24-123456"`, r.URL.Query().Get("q"))
		fmt.Fprint(w, recordsBody(t, 1, map[string]any{"idweb": "24-123456", "donnees": eformsNotice}))
	}))
	defer srv.Close()

	client := boamp.NewClient(srv.URL, time.Second, nil)
	doc, err := client.FetchNotice(context.Background(), "24-123456")
	require.NoError(t, err)
	require.Contains(t, doc, "EFORMS")
}

func TestFetchNoticeInlineDonnees(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, recordsBody(t, 1, map[string]any{
			"idweb":   "24-123456",
			"donnees": map[string]any{"FNSimple": map[string]any{}},
		}))
	}))
	defer srv.Close()

	client := boamp.NewClient(srv.URL, time.Second, nil)
	doc, err := client.FetchNotice(context.Background(), "24-123456")
	require.NoError(t, err)
	require.Contains(t, doc, "FNSimple")
}

func TestFetchNoticeNoRecord(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, recordsBody(t, 0))
	}))
	defer srv.Close()

	client := boamp.NewClient(srv.URL, time.Second, nil)
	_, err := client.FetchNotice(context.Background(), "24-000000")
	require.Error(t, err)
}

func TestFetchNoticeServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := boamp.NewClient(srv.URL, time.Second, nil)
	_, err := client.FetchNotice(context.Background(), "24-123456")
	require.ErrorContains(t, err, "502")
}

func TestSearchIDsForwardsFacetParams(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		require.Equal(t, "boamp", q.Get("dataset"))
		require.Equal(t, "25", q.Get("rows"))
		require.Equal(t, "plomberie", q.Get("q"))
		require.Equal(t, "ATTRIBUTION", q.Get("refine.nature_libelle"))
		require.Empty(t, q.Get("page"))
		fmt.Fprint(w, recordsBody(t, 2,
			map[string]any{"idweb": "24-100001"},
			map[string]any{"idweb": "24-100002"},
		))
	}))
	defer srv.Close()

	client := boamp.NewClient(srv.URL, time.Second, nil)
	searchURL := "https://www.boamp.fr/pages/recherche/?q=plomberie&refine.nature_libelle=ATTRIBUTION&page=3"
	ids, total, err := client.SearchIDs(context.Background(), searchURL, 25)
	require.NoError(t, err)
	require.Equal(t, 2, total)
	require.Equal(t, []string{"24-100001", "24-100002"}, ids)
}

func TestScrapeNoticeEndToEnd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, recordsBody(t, 1, map[string]any{"idweb": "24-123456", "donnees": eformsNotice}))
	}))
	defer srv.Close()

	scraper := boamp.NewScraper(boamp.NewClient(srv.URL, time.Second, nil), nil)
	noticeURL := boamp.NoticeURL("24-123456")

	records, err := scraper.ScrapeNotice(context.Background(), noticeURL, []string{"plomberie"})
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "ACME Plomberie", records[0].Name)
	require.Equal(t, "24-123456", records[0].NoticeID)
	require.Equal(t, noticeURL, records[0].SourceURL)
}

func TestScrapeNoticeRejectsURLWithoutID(t *testing.T) {
	scraper := boamp.NewScraper(boamp.NewClient("http://unused", time.Second, nil), nil)
	_, err := scraper.ScrapeNotice(context.Background(), "https://www.boamp.fr/pages/avis/", nil)
	require.Error(t, err)
}

func TestScrapeNoticeUnknownVariantFallsBackEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("dataset") {
		case "boamp-html":
			fmt.Fprint(w, recordsBody(t, 1, map[string]any{"html": "<html><body><p>Avis texte libre</p></body></html>"}))
		default:
			fmt.Fprint(w, recordsBody(t, 1, map[string]any{"donnees": map[string]any{"autre": "format"}}))
		}
	}))
	defer srv.Close()

	scraper := boamp.NewScraper(boamp.NewClient(srv.URL, time.Second, nil), nil)
	records, err := scraper.ScrapeNotice(context.Background(), boamp.NoticeURL("24-123456"), []string{"plomberie"})
	require.NoError(t, err)
	require.Empty(t, records)
}

func TestScrapeSearchWalksEveryNotice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		if q == "plomberie" {
			fmt.Fprint(w, recordsBody(t, 2,
				map[string]any{"idweb": "24-100001"},
				map[string]any{"idweb": "24-100002"},
			))
			return
		}
		fmt.Fprint(w, recordsBody(t, 1, map[string]any{"idweb": "x", "donnees": eformsNotice}))
	}))
	defer srv.Close()

	scraper := boamp.NewScraper(boamp.NewClient(srv.URL, time.Second, nil), nil)

	var calls []int
	progress := func(current, total int, _ string) {
		require.Equal(t, 2, total)
		calls = append(calls, current)
	}

	records, err := scraper.ScrapeSearch(context.Background(),
		"https://www.boamp.fr/pages/recherche/?q=plomberie", []string{"plomberie"}, 50, progress)
	require.NoError(t, err)
	require.Equal(t, []int{1, 2}, calls)
	require.Len(t, records, 2)
	require.Equal(t, "24-100001", records[0].NoticeID)
	require.Equal(t, "24-100002", records[1].NoticeID)
}
