package books

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/shelfmark/tbrbot/src/config"
	"github.com/shelfmark/tbrbot/src/oops"
)

var booksAPIBaseUrl = config.Config.GoogleBooks.BaseUrl

// Returned when the volumes API has no results for a query. Anything else
// that goes wrong during a lookup is a transport failure.
var ErrNotFound = errors.New("no books found")

var httpClient = &http.Client{}

const (
	UnknownTitle     = "Unknown Title"
	UnknownAuthor    = "Unknown Author"
	UnknownPublisher = "Unknown Publisher"
	UnknownISBN      = "Unknown ISBN"
	NoDescription    = "No summary/description available"
)

type LookupRequest struct {
	Title     string
	Author    string
	Publisher string
	ISBN      string
	Edition   string
}

// A normalized record extracted from the first volume of a search response.
// Produced fresh per lookup; never persisted.
type Book struct {
	Title       string
	Author      string // all authors, comma-joined
	Publisher   string
	ISBN        string // "TYPE: identifier" pairs, comma-joined
	Description string
	CoverUrl    string // empty if the volume has no thumbnail
}

// Builds the volumes API query, e.g. "intitle:dune+inauthor:herbert". Empty
// fields are omitted. The query is escaped as a whole when it goes into the
// URL, so user input cannot smuggle in extra parameters.
func (req LookupRequest) Query() string {
	var terms []string
	add := func(prefix, value string) {
		if value != "" {
			terms = append(terms, prefix+":"+value)
		}
	}
	add("intitle", req.Title)
	add("inauthor", req.Author)
	add("inpublisher", req.Publisher)
	add("isbn", req.ISBN)
	add("edition", req.Edition)
	return strings.Join(terms, " ")
}

func Lookup(ctx context.Context, req LookupRequest) (*Book, error) {
	requestUrl := fmt.Sprintf(
		"%s/volumes?q=%s&key=%s",
		booksAPIBaseUrl,
		url.QueryEscape(req.Query()),
		url.QueryEscape(config.Config.GoogleBooks.APIKey),
	)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, requestUrl, nil)
	if err != nil {
		return nil, oops.New(err, "failed to create request")
	}

	res, err := httpClient.Do(httpReq)
	if err != nil {
		return nil, oops.New(err, "failed to fetch book info")
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, oops.New(nil, "got status %d from the books API", res.StatusCode)
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, oops.New(err, "failed to read books API response")
	}

	var volumes volumesResponse
	err = json.Unmarshal(body, &volumes)
	if err != nil {
		return nil, oops.New(err, "failed to unmarshal books API response")
	}

	if len(volumes.Items) == 0 {
		return nil, ErrNotFound
	}

	book := extractBook(volumes.Items[0].VolumeInfo)
	return &book, nil
}

type volumesResponse struct {
	Items []struct {
		VolumeInfo volumeInfo `json:"volumeInfo"`
	} `json:"items"`
}

type volumeInfo struct {
	Title               string               `json:"title"`
	Authors             []string             `json:"authors"`
	Publisher           string               `json:"publisher"`
	IndustryIdentifiers []industryIdentifier `json:"industryIdentifiers"`
	Description         string               `json:"description"`
	ImageLinks          struct {
		Thumbnail string `json:"thumbnail"`
	} `json:"imageLinks"`
}

type industryIdentifier struct {
	Type       string `json:"type"`
	Identifier string `json:"identifier"`
}

// Only the first search result is consumed; every missing field gets a
// placeholder so the rendered embed always has something to say.
func extractBook(info volumeInfo) Book {
	book := Book{
		Title:       info.Title,
		Author:      strings.Join(info.Authors, ", "),
		Publisher:   info.Publisher,
		Description: info.Description,
		CoverUrl:    info.ImageLinks.Thumbnail,
	}

	if book.Title == "" {
		book.Title = UnknownTitle
	}
	if book.Author == "" {
		book.Author = UnknownAuthor
	}
	if book.Publisher == "" {
		book.Publisher = UnknownPublisher
	}
	if book.Description == "" {
		book.Description = NoDescription
	}

	var isbns []string
	for _, id := range info.IndustryIdentifiers {
		isbns = append(isbns, fmt.Sprintf("%s: %s", id.Type, id.Identifier))
	}
	if len(isbns) > 0 {
		book.ISBN = strings.Join(isbns, ", ")
	} else {
		book.ISBN = UnknownISBN
	}

	return book
}
