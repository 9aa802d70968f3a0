package books

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuery(t *testing.T) {
	t.Run("title and author", func(t *testing.T) {
		q := LookupRequest{Title: "Dune", Author: "Herbert"}.Query()
		assert.Equal(t, "intitle:Dune inauthor:Herbert", q)
	})
	t.Run("all fields", func(t *testing.T) {
		q := LookupRequest{
			Title:     "Dune",
			Author:    "Herbert",
			Publisher: "Ace",
			ISBN:      "9780441172719",
			Edition:   "1",
		}.Query()
		assert.Equal(t, "intitle:Dune inauthor:Herbert inpublisher:Ace isbn:9780441172719 edition:1", q)
	})
	t.Run("empty fields are omitted", func(t *testing.T) {
		q := LookupRequest{Title: "Dune"}.Query()
		assert.Equal(t, "intitle:Dune", q)
	})
}

func TestLookup(t *testing.T) {
	t.Run("no results", func(t *testing.T) {
		restore := stubAPI(t, `{"totalItems": 0, "items": []}`)
		defer restore()

		_, err := Lookup(context.Background(), LookupRequest{Title: "Dune", Author: "Herbert"})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("missing items field", func(t *testing.T) {
		restore := stubAPI(t, `{"totalItems": 0}`)
		defer restore()

		_, err := Lookup(context.Background(), LookupRequest{Title: "Dune"})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("server error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()
		oldBase := booksAPIBaseUrl
		booksAPIBaseUrl = srv.URL
		defer func() { booksAPIBaseUrl = oldBase }()

		_, err := Lookup(context.Background(), LookupRequest{Title: "Dune"})
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrNotFound)
	})

	t.Run("full volume", func(t *testing.T) {
		restore := stubAPI(t, `{
			"items": [{
				"volumeInfo": {
					"title": "Dune",
					"authors": ["Frank Herbert"],
					"publisher": "Ace",
					"industryIdentifiers": [
						{"type": "ISBN_10", "identifier": "0441172717"},
						{"type": "ISBN_13", "identifier": "9780441172719"}
					],
					"description": "A desert planet.",
					"imageLinks": {"thumbnail": "http://example.com/dune.jpg"}
				}
			}]
		}`)
		defer restore()

		book, err := Lookup(context.Background(), LookupRequest{Title: "Dune", Author: "Herbert"})
		require.NoError(t, err)
		assert.Equal(t, "Dune", book.Title)
		assert.Equal(t, "Frank Herbert", book.Author)
		assert.Equal(t, "Ace", book.Publisher)
		assert.Equal(t, "ISBN_10: 0441172717, ISBN_13: 9780441172719", book.ISBN)
		assert.Equal(t, "A desert planet.", book.Description)
		assert.Equal(t, "http://example.com/dune.jpg", book.CoverUrl)
	})

	t.Run("sparse volume gets placeholders", func(t *testing.T) {
		restore := stubAPI(t, `{"items": [{"volumeInfo": {}}]}`)
		defer restore()

		book, err := Lookup(context.Background(), LookupRequest{Title: "whatever"})
		require.NoError(t, err)
		assert.Equal(t, UnknownTitle, book.Title)
		assert.Equal(t, UnknownAuthor, book.Author)
		assert.Equal(t, UnknownPublisher, book.Publisher)
		assert.Equal(t, UnknownISBN, book.ISBN)
		assert.Equal(t, NoDescription, book.Description)
		assert.Equal(t, "", book.CoverUrl)
	})

	t.Run("only the first item is used", func(t *testing.T) {
		restore := stubAPI(t, `{
			"items": [
				{"volumeInfo": {"title": "First"}},
				{"volumeInfo": {"title": "Second"}}
			]
		}`)
		defer restore()

		book, err := Lookup(context.Background(), LookupRequest{Title: "first"})
		require.NoError(t, err)
		assert.Equal(t, "First", book.Title)
	})
}

func TestLookupSendsQuery(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		w.Write([]byte(`{"items": [{"volumeInfo": {"title": "Dune"}}]}`))
	}))
	defer srv.Close()
	oldBase := booksAPIBaseUrl
	booksAPIBaseUrl = srv.URL
	defer func() { booksAPIBaseUrl = oldBase }()

	_, err := Lookup(context.Background(), LookupRequest{Title: "Dune Messiah", Author: "Frank Herbert"})
	require.NoError(t, err)
	assert.Equal(t, "intitle:Dune Messiah inauthor:Frank Herbert", gotQuery)
}

func stubAPI(t *testing.T, response string) func() {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(response))
	}))
	oldBase := booksAPIBaseUrl
	booksAPIBaseUrl = srv.URL
	return func() {
		booksAPIBaseUrl = oldBase
		srv.Close()
	}
}
