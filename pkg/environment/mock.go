package environment

import "strings"

// Mock returns a Snapshot describing a plain HTTP/1.1 GET request to
// localhost, with overrides applied on top. When overrides switch HTTPS on
// without choosing a port, the port defaults to 443.
func Mock(overrides map[string]string) Snapshot {
	s := Snapshot{
		"SERVER_PROTOCOL":      "HTTP/1.1",
		"REQUEST_METHOD":       "GET",
		"SCRIPT_NAME":          "",
		"REQUEST_URI":          "",
		"QUERY_STRING":         "",
		"SERVER_NAME":          "localhost",
		"SERVER_PORT":          "80",
		"HTTP_HOST":            "localhost",
		"HTTP_ACCEPT":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		"HTTP_ACCEPT_LANGUAGE": "en-US,en;q=0.8",
		"HTTP_ACCEPT_CHARSET":  "ISO-8859-1,utf-8;q=0.7,*;q=0.3",
		"HTTP_USER_AGENT":      "Shape Message",
		"REMOTE_ADDR":          "127.0.0.1",
	}
	https := overrides["HTTPS"]
	if _, ok := overrides["SERVER_PORT"]; !ok && https != "" && !strings.EqualFold(https, "off") {
		s["SERVER_PORT"] = "443"
	}
	for k, v := range overrides {
		s[k] = v
	}
	return s
}
