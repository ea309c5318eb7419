package db

import (
	"net/url"
	"strings"
)

// pgKeys are the connection keys the service reads from a key=value DSN.
var pgKeys = map[string]bool{"host": true, "port": true, "user": true, "password": true, "dbname": true, "sslmode": true}

func isURLDSN(s string) bool {
	lower := strings.ToLower(s)
	return strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://")
}

// parseKV splits a libpq key=value list. Values may be single-quoted with \' and \\ escapes.
// ok is false when no known key is present.
func parseKV(s string) (params map[string]string, order []string, ok bool) {
	params = map[string]string{}
	i := 0
	for i < len(s) {
		for i < len(s) && s[i] == ' ' {
			i++
		}
		eq := strings.IndexByte(s[i:], '=')
		if eq <= 0 {
			break
		}
		key := strings.ToLower(strings.TrimSpace(s[i : i+eq]))
		i += eq + 1
		var val strings.Builder
		if i < len(s) && s[i] == '\'' {
			i++
			for i < len(s) && s[i] != '\'' {
				if s[i] == '\\' && i+1 < len(s) {
					i++
				}
				val.WriteByte(s[i])
				i++
			}
			i++
		} else {
			for i < len(s) && s[i] != ' ' {
				val.WriteByte(s[i])
				i++
			}
		}
		if _, seen := params[key]; !seen {
			order = append(order, key)
		}
		params[key] = val.String()
		ok = ok || pgKeys[key]
	}
	return params, order, ok
}

func quoteKV(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(v)
	return "'" + v + "'"
}

// NormalizeDSN trims quotes and whitespace from a postgres DSN. URL DSNs pass through;
// key=value lists are rewritten one pair per space, with sslmode=disable when missing.
// Anything else is returned trimmed for the driver to reject.
func NormalizeDSN(raw string) string {
	s := strings.Trim(strings.TrimSpace(raw), "\"")
	if s == "" || isURLDSN(s) {
		return s
	}
	params, order, ok := parseKV(s)
	if !ok {
		return s
	}
	if _, has := params["sslmode"]; !has {
		params["sslmode"] = "disable"
		order = append(order, "sslmode")
	}
	pairs := make([]string, 0, len(order))
	for _, k := range order {
		pairs = append(pairs, k+"="+quoteKV(params[k]))
	}
	return strings.Join(pairs, " ")
}

// ToURLDSN converts a key=value DSN for golang-migrate, which only takes URLs. Lists
// without host, user and dbname are returned unchanged.
func ToURLDSN(dsn string) string {
	if dsn == "" || isURLDSN(dsn) {
		return dsn
	}
	m, _, _ := parseKV(dsn)
	if m["host"] == "" || m["user"] == "" || m["dbname"] == "" {
		return dsn
	}
	u := &url.URL{Scheme: "postgres", Host: m["host"], Path: "/" + m["dbname"], User: url.User(m["user"])}
	if m["port"] != "" {
		u.Host += ":" + m["port"]
	}
	if m["password"] != "" {
		u.User = url.UserPassword(m["user"], m["password"])
	}
	if sslm, ok := m["sslmode"]; ok {
		u.RawQuery = url.Values{"sslmode": {sslm}}.Encode()
	}
	return u.String()
}
