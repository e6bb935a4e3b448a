package app

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// dsnInfo is a password-free description of a database DSN.
type dsnInfo struct {
	Type        string
	Host        string
	Port        int
	User        string
	Name        string
	SSLMode     string
	Path        string
	PasswordSet bool
}

func (i dsnInfo) String() string {
	if i.Type == "sqlite" {
		return "sqlite path=" + i.Path
	}
	return fmt.Sprintf("%s host=%s port=%d user=%s db=%s password_set=%t", i.Type, i.Host, i.Port, i.User, i.Name, i.PasswordSet)
}

func describeDSN(dsn string) (dsnInfo, error) {
	trimmed := strings.TrimSpace(dsn)
	if trimmed == "" {
		return dsnInfo{}, fmt.Errorf("empty dsn")
	}

	lowered := strings.ToLower(trimmed)
	if strings.HasPrefix(lowered, "file:") {
		pathPart := trimmed[len("file:"):]
		pathPart, _, _ = strings.Cut(pathPart, "?")
		return dsnInfo{Type: "sqlite", Path: strings.TrimSpace(pathPart)}, nil
	}
	if !strings.Contains(trimmed, "://") {
		if strings.Contains(trimmed, "@tcp(") {
			return describeMySQLDSN(trimmed)
		}
		pathPart, _, _ := strings.Cut(trimmed, "?")
		return dsnInfo{Type: "sqlite", Path: strings.TrimSpace(pathPart)}, nil
	}

	u, errParse := url.Parse(trimmed)
	if errParse != nil {
		return dsnInfo{}, fmt.Errorf("parse dsn: %w", errParse)
	}

	var info dsnInfo
	switch strings.ToLower(strings.TrimSpace(u.Scheme)) {
	case "postgres", "postgresql":
		info = dsnInfo{Type: "postgres", Port: 5432}
		info.SSLMode = strings.TrimSpace(u.Query().Get("sslmode"))
		if info.SSLMode == "" {
			info.SSLMode = "disable"
		}
	case "mysql":
		info = dsnInfo{Type: "mysql", Port: 3306}
	default:
		return dsnInfo{}, fmt.Errorf("unsupported dsn scheme")
	}
	if rawPort := strings.TrimSpace(u.Port()); rawPort != "" {
		parsedPort, errPort := strconv.Atoi(rawPort)
		if errPort != nil {
			return dsnInfo{}, fmt.Errorf("parse port: %w", errPort)
		}
		info.Port = parsedPort
	}
	if u.User != nil {
		info.User = strings.TrimSpace(u.User.Username())
		_, info.PasswordSet = u.User.Password()
	}
	info.Host = strings.TrimSpace(u.Hostname())
	info.Name = strings.TrimSpace(strings.TrimPrefix(u.Path, "/"))
	return info, nil
}

// describeMySQLDSN handles the go-sql-driver form user:pass@tcp(host:port)/db.
func describeMySQLDSN(dsn string) (dsnInfo, error) {
	info := dsnInfo{Type: "mysql", Port: 3306}
	creds, rest, _ := strings.Cut(dsn, "@tcp(")
	user, _, hasPassword := strings.Cut(creds, ":")
	info.User = user
	info.PasswordSet = hasPassword
	addr, tail, ok := strings.Cut(rest, ")")
	if !ok {
		return dsnInfo{}, fmt.Errorf("parse dsn: missing ')'")
	}
	host, rawPort, hasPort := strings.Cut(addr, ":")
	info.Host = host
	if hasPort {
		parsedPort, errPort := strconv.Atoi(rawPort)
		if errPort != nil {
			return dsnInfo{}, fmt.Errorf("parse port: %w", errPort)
		}
		info.Port = parsedPort
	}
	name, _, _ := strings.Cut(strings.TrimPrefix(tail, "/"), "?")
	info.Name = name
	return info, nil
}
