package job

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

const (
	DefaultLimit = 50
	MaxLimit     = 500
)

var (
	ErrJobNotFound   = errors.New("job not found")
	ErrInvalidFilter = errors.New("invalid filter")
)

// Filter selects and pages job listings. Nil fields match everything.
type Filter struct {
	Status *Status
	Client *string
	Limit  int
	Offset int
}

// FilterParams is the raw query-string form of a Filter.
type FilterParams struct {
	Status string `form:"status"`
	Client string `form:"client"`
	Limit  string `form:"limit"`
	Offset string `form:"offset"`
}

// ParseFilter validates query parameters and fills in paging defaults.
func ParseFilter(p FilterParams) (Filter, error) {
	f := Filter{Limit: DefaultLimit}

	if raw := strings.TrimSpace(p.Status); raw != "" {
		v, err := strconv.ParseUint(raw, 10, 8)
		if err != nil || Status(v) > MaxQueryStatus {
			return Filter{}, fmt.Errorf("%w: status must be between 0 and %d", ErrInvalidFilter, MaxQueryStatus)
		}
		s := Status(v)
		f.Status = &s
	}

	if raw := strings.TrimSpace(p.Client); raw != "" {
		addr, err := NormalizeAddress(raw)
		if err != nil {
			return Filter{}, fmt.Errorf("%w: %v", ErrInvalidFilter, err)
		}
		f.Client = &addr
	}

	if raw := strings.TrimSpace(p.Limit); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			return Filter{}, fmt.Errorf("%w: limit must be a positive integer", ErrInvalidFilter)
		}
		f.Limit = v
	}
	if f.Limit > MaxLimit {
		f.Limit = MaxLimit
	}

	if raw := strings.TrimSpace(p.Offset); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			return Filter{}, fmt.Errorf("%w: offset must be a non-negative integer", ErrInvalidFilter)
		}
		f.Offset = v
	}

	return f, nil
}

// ParseID validates a job id taken from the query string.
func ParseID(raw string) (uint64, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: jobId must be a non-negative integer", ErrInvalidFilter)
	}
	return id, nil
}

// NormalizeAddress returns the checksummed form of a hex address.
func NormalizeAddress(raw string) (string, error) {
	if !common.IsHexAddress(raw) {
		return "", fmt.Errorf("%q is not a hex address", raw)
	}
	return common.HexToAddress(raw).Hex(), nil
}

// Matches reports whether j passes the status and client predicates.
func (f Filter) Matches(j Job) bool {
	if f.Status != nil && j.Status != *f.Status {
		return false
	}
	if f.Client != nil && !strings.EqualFold(j.Client, *f.Client) {
		return false
	}
	return true
}

// Apply filters jobs, orders them by id and cuts out the requested page.
func (f Filter) Apply(jobs []Job) []Job {
	matched := make([]Job, 0, len(jobs))
	for _, j := range jobs {
		if f.Matches(j) {
			matched = append(matched, j)
		}
	}
	sort.Slice(matched, func(a, b int) bool { return matched[a].ID < matched[b].ID })

	limit := f.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if f.Offset >= len(matched) {
		return []Job{}
	}
	end := f.Offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[f.Offset:end]
}
