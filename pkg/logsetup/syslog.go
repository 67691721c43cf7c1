package logsetup

import (
	"fmt"
	"log/syslog"
	"strings"

	"github.com/graftwork/graft/pkg/config"
)

// facilities maps syslog(3) facility names to their priorities.
var facilities = map[string]syslog.Priority{
	"kern":     syslog.LOG_KERN,
	"user":     syslog.LOG_USER,
	"mail":     syslog.LOG_MAIL,
	"daemon":   syslog.LOG_DAEMON,
	"auth":     syslog.LOG_AUTH,
	"syslog":   syslog.LOG_SYSLOG,
	"lpr":      syslog.LOG_LPR,
	"news":     syslog.LOG_NEWS,
	"uucp":     syslog.LOG_UUCP,
	"cron":     syslog.LOG_CRON,
	"authpriv": syslog.LOG_AUTHPRIV,
	"ftp":      syslog.LOG_FTP,
	"local0":   syslog.LOG_LOCAL0,
	"local1":   syslog.LOG_LOCAL1,
	"local2":   syslog.LOG_LOCAL2,
	"local3":   syslog.LOG_LOCAL3,
	"local4":   syslog.LOG_LOCAL4,
	"local5":   syslog.LOG_LOCAL5,
	"local6":   syslog.LOG_LOCAL6,
	"local7":   syslog.LOG_LOCAL7,
}

// ParseFacility maps a configured facility name to a syslog priority.
func ParseFacility(name string) (syslog.Priority, error) {
	if facility, ok := facilities[strings.ToLower(strings.TrimSpace(name))]; ok {
		return facility, nil
	}
	return 0, &config.ConfigurationError{
		Section: "logging",
		Key:     "syslog_facility",
		Reason:  fmt.Sprintf("unknown syslog facility %q", name),
	}
}
