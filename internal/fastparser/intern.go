package fastparser

// Lookups keyed by string(b) do not allocate, so known tokens come out of
// these tables for free.

var methods = map[string]string{
	"GET": "GET", "HEAD": "HEAD", "POST": "POST",
	"PUT": "PUT", "DELETE": "DELETE", "CONNECT": "CONNECT",
	"OPTIONS": "OPTIONS", "TRACE": "TRACE", "PATCH": "PATCH",
}

var versions = map[string]string{
	"1.0": "1.0", "1.1": "1.1", "2": "2", "2.0": "2.0",
}

var fieldNames = map[string]string{
	"Accept":            "Accept",
	"Accept-Encoding":   "Accept-Encoding",
	"Accept-Language":   "Accept-Language",
	"Authorization":     "Authorization",
	"Cache-Control":     "Cache-Control",
	"Connection":        "Connection",
	"Content-Encoding":  "Content-Encoding",
	"Content-Length":    "Content-Length",
	"Content-Type":      "Content-Type",
	"Cookie":            "Cookie",
	"Date":              "Date",
	"ETag":              "ETag",
	"Host":              "Host",
	"If-None-Match":     "If-None-Match",
	"Location":          "Location",
	"Origin":            "Origin",
	"Referer":           "Referer",
	"Server":            "Server",
	"Set-Cookie":        "Set-Cookie",
	"Transfer-Encoding": "Transfer-Encoding",
	"User-Agent":        "User-Agent",
	"Vary":              "Vary",
	"X-Forwarded-For":   "X-Forwarded-For",
	"X-Forwarded-Proto": "X-Forwarded-Proto",
	"X-Requested-With":  "X-Requested-With",
}

func internMethod(b []byte) string {
	if s, ok := methods[string(b)]; ok {
		return s
	}
	return string(b)
}

func internVersion(b []byte) string {
	if s, ok := versions[string(b)]; ok {
		return s
	}
	return string(b)
}

func internFieldName(b []byte) string {
	if s, ok := fieldNames[string(b)]; ok {
		return s
	}
	return string(b)
}
