package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"fintrack/internal/core"
	"fintrack/internal/services"
	"fintrack/internal/storage"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// decodeJSON reads the request body into dst. Malformed input is reported
// as a validation error on "body", or on the offending field when the JSON
// is well formed but has the wrong type.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		var typeErr *json.UnmarshalTypeError
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return core.ValidationErrors{{Field: "body", Message: "request body is required"}}
		case errors.As(err, &typeErr) && typeErr.Field != "":
			return core.ValidationErrors{{Field: typeErr.Field, Message: "has an invalid type"}}
		case errors.As(err, &maxErr):
			return core.ValidationErrors{{Field: "body", Message: "request body is too large"}}
		case errors.Is(err, core.ErrInvalidAmount), errors.Is(err, core.ErrAmountTooLarge), errors.Is(err, core.ErrInvalidDate):
			return core.ValidationErrors{{Field: "body", Message: err.Error()}}
		default:
			return core.ValidationErrors{{Field: "body", Message: "malformed JSON"}}
		}
	}
	return nil
}

// pathID parses the {id} wildcard of the route.
func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, core.ValidationErrors{{Field: "id", Message: "must be a positive integer"}}
	}
	return id, nil
}

// queryParser reads typed query parameters, collecting every problem so
// the client gets them all at once.
type queryParser struct {
	q    url.Values
	errs core.ValidationErrors
}

func newQueryParser(r *http.Request) *queryParser {
	return &queryParser{q: r.URL.Query()}
}

func (p *queryParser) str(name string) string {
	return strings.TrimSpace(p.q.Get(name))
}

// intIn returns the parameter or def when absent; values outside
// [min, max] are rejected.
func (p *queryParser) intIn(name string, def, min, max int) int {
	v := p.str(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < min || n > max {
		p.errs.Add(name, fmt.Sprintf("must be an integer between %d and %d", min, max))
		return def
	}
	return n
}

// integer returns the parameter or 0 when absent. Range limits are left to
// the service, which clamps them.
func (p *queryParser) integer(name string) int {
	v := p.str(name)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.errs.Add(name, "must be an integer")
		return 0
	}
	return n
}

func (p *queryParser) id(name string) int64 {
	v := p.str(name)
	if v == "" {
		return 0
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		p.errs.Add(name, "must be a positive integer")
		return 0
	}
	return n
}

func (p *queryParser) date(name string) *core.Date {
	v := p.str(name)
	if v == "" {
		return nil
	}
	d, err := core.ParseDate(v)
	if err != nil {
		p.errs.Add(name, "must be a date in YYYY-MM-DD format")
		return nil
	}
	return &d
}

func (p *queryParser) money(name string) *core.Money {
	v := p.str(name)
	if v == "" {
		return nil
	}
	m, err := core.ParseMoney(v)
	if err != nil {
		p.errs.Add(name, err.Error())
		return nil
	}
	return &m
}

// txType returns the type parameter, or def when absent.
func (p *queryParser) txType(def core.TransactionType) core.TransactionType {
	v := p.str("type")
	if v == "" {
		return def
	}
	t := core.TransactionType(strings.ToLower(v))
	if !t.Valid() {
		p.errs.Add("type", core.ErrInvalidType.Error())
		return def
	}
	return t
}

func (p *queryParser) boolPtr(name string) *bool {
	v := p.str(name)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.errs.Add(name, "must be true or false")
		return nil
	}
	return &b
}

func (p *queryParser) dateRange() services.DateRange {
	return services.DateRange{From: p.date("startDate"), To: p.date("endDate")}
}

func (p *queryParser) err() error {
	return p.errs.Err()
}

// transactionQuery is the parsed query of a transaction listing.
type transactionQuery struct {
	Filter storage.TransactionFilter
	Page   int
	Limit  int
}

func parseTransactionQuery(r *http.Request) (transactionQuery, error) {
	p := newQueryParser(r)
	f := storage.TransactionFilter{
		Type:       p.txType(""),
		CategoryID: p.id("categoryId"),
		StartDate:  p.date("startDate"),
		EndDate:    p.date("endDate"),
		Search:     p.str("search"),
		MinAmount:  p.money("minAmount"),
		MaxAmount:  p.money("maxAmount"),
		Tag:        p.str("tag"),
		SortBy:     storage.SortByDate,
		Desc:       true,
	}

	switch sortBy := p.str("sortBy"); sortBy {
	case "":
	case storage.SortByDate, storage.SortByAmount, storage.SortByCreatedAt:
		f.SortBy = sortBy
	default:
		p.errs.Add("sortBy", "must be one of date, amount, createdAt")
	}
	switch order := strings.ToLower(p.str("order")); order {
	case "", "desc":
	case "asc":
		f.Desc = false
	default:
		p.errs.Add("order", "must be asc or desc")
	}

	q := transactionQuery{
		Filter: f,
		Page:   p.intIn("page", 1, 1, 1<<30),
		Limit:  p.intIn("limit", services.DefaultPageLimit, 1, services.MaxPageLimit),
	}
	return q, p.err()
}
