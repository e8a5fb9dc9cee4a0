package domain

import (
	"encoding/base64"
	"sort"
	"strings"
)

// Catalog maps a country code to its display name.
type Catalog map[string]string

// Codes returns the catalog keys in ascending order.
func (c Catalog) Codes() []string {
	codes := make([]string, 0, len(c))
	for code := range c {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Clone returns an independent copy of the catalog.
func (c Catalog) Clone() Catalog {
	out := make(Catalog, len(c))
	for code, name := range c {
		out[code] = name
	}
	return out
}

// RoundKind distinguishes the two quiz directions.
type RoundKind string

const (
	// RoundCountry shows a flag and asks for the country name.
	RoundCountry RoundKind = "country"
	// RoundFlag shows a country name and asks for the flag.
	RoundFlag RoundKind = "flag"
)

// ParseRoundKind validates a client supplied mode.
func ParseRoundKind(raw string) (RoundKind, error) {
	switch RoundKind(raw) {
	case RoundCountry, RoundFlag:
		return RoundKind(raw), nil
	}
	return "", ErrUnknownMode
}

// Round is one question with len(Codes) answer slots; Codes[Correct] is the answer.
type Round struct {
	Kind    RoundKind `json:"kind"`
	Codes   []string  `json:"codes"`
	Correct int       `json:"-"`
}

// CorrectCode returns the code of the correct slot.
func (r Round) CorrectCode() string {
	return r.Codes[r.Correct]
}

// ReadinessState is the lifecycle of a session's initial load.
type ReadinessState string

const (
	ReadinessPending ReadinessState = "pending"
	ReadinessReady   ReadinessState = "ready"
	ReadinessFailed  ReadinessState = "failed"
)

// Page identifies which screen the client should display.
type Page string

const (
	PageHome         Page = "home"
	PageGuessCountry Page = "guess-country"
	PageGuessFlag    Page = "guess-flag"
)

// ImageResponse is what an image source returns for a single flag.
type ImageResponse struct {
	Status int
	Body   []byte
}

// FlagImage is a resolved flag tagged with the code it was requested for.
type FlagImage struct {
	Code        string
	ContentType string
	Data        []byte
}

// DataURI encodes the image for direct use as an <img> source.
func (f FlagImage) DataURI() string {
	return "data:" + f.ContentType + ";base64," + base64.StdEncoding.EncodeToString(f.Data)
}

// Image is what a presentation target displays.
type Image struct {
	Code string `json:"code,omitempty"`
	Src  string `json:"src"`
	Alt  string `json:"alt"`
}

// SessionStatus is a point-in-time view of a quiz session.
type SessionStatus struct {
	ID        string         `json:"id"`
	State     ReadinessState `json:"state"`
	Error     string         `json:"error,omitempty"`
	Kind      RoundKind      `json:"kind,omitempty"`
	Rounds    int            `json:"rounds"`
	Countries int            `json:"countries"`
}

// CacheKey builds the response cache key for a flag in a cache namespace.
func CacheKey(namespace, code string) string {
	return namespace + ":" + strings.ToLower(code)
}

// CacheNamespace returns the namespace part of a key built by CacheKey.
func CacheNamespace(key string) string {
	ns, _, _ := strings.Cut(key, ":")
	return ns
}
