package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation error [%s]: %s", e.Field, e.Message)
}

// ValidationResult holds the results of configuration validation.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationError
}

// IsValid returns true if there are no validation errors.
func (r *ValidationResult) IsValid() bool {
	return len(r.Errors) == 0
}

// AddError adds a validation error.
func (r *ValidationResult) AddError(field, message string) {
	r.Errors = append(r.Errors, ValidationError{Field: field, Message: message})
}

// AddWarning adds a validation warning.
func (r *ValidationResult) AddWarning(field, message string) {
	r.Warnings = append(r.Warnings, ValidationError{Field: field, Message: message})
}

// Validate performs comprehensive validation of the configuration.
func Validate(cfg *Config) *ValidationResult {
	result := &ValidationResult{}

	validateBrowserData(&cfg.BrowserData, result)
	validateApplicationData(&cfg.ApplicationData, result)

	return result
}

func validateBrowserData(data *BrowserData, result *ValidationResult) {
	if data.BindHost != "" && net.ParseIP(data.BindHost) == nil {
		result.AddError("browser_data.udp_bind_host",
			fmt.Sprintf("not a valid IP address: %s", data.BindHost))
	}
	validatePort(data.BindPort, "browser_data.udp_bind_port", result)

	if strings.TrimSpace(data.BoostedAPIURL) == "" {
		result.AddWarning("browser_data.boosted_api_url",
			"no boosted list API configured, only the local list will be served")
	} else if u, err := url.Parse(data.BoostedAPIURL); err != nil || u.Scheme == "" || u.Host == "" {
		result.AddError("browser_data.boosted_api_url",
			fmt.Sprintf("not a valid URL: %s", data.BoostedAPIURL))
	}

	if data.RefreshIntervalSec < 30 {
		result.AddWarning("browser_data.list_refresh_interval_sec",
			"refresh interval below 30s may hammer the upstream API")
	}

	switch data.MergePriority {
	case MergePriorityHigh, MergePriorityLow, MergePriorityOnly:
	default:
		result.AddError("browser_data.merge_priority",
			fmt.Sprintf("must be one of high, low, only (got %q)", data.MergePriority))
	}

	if data.LoggingEnabled && strings.TrimSpace(data.AuditFilePath) == "" {
		result.AddError("browser_data.connection_log_file",
			"connection log file is required when connection logging is enabled")
	}
	if data.AuditAPIURL != "" {
		if u, err := url.Parse(data.AuditAPIURL); err != nil || u.Scheme == "" || u.Host == "" {
			result.AddError("browser_data.connection_log_api_url",
				fmt.Sprintf("not a valid URL: %s", data.AuditAPIURL))
		}
	}
	if data.AuditMaxQueue < 1 {
		result.AddError("browser_data.connection_log_max_queue",
			"audit queue cap must be at least 1")
	}

	if data.MaxConnectionsPerIP < 1 {
		result.AddError("browser_data.max_connections_per_ip",
			"per-IP request cap must be at least 1")
	}
	if data.RateWindowSec < 1 {
		result.AddError("browser_data.rate_window_sec",
			"rate limit window must be at least 1 second")
	}
	if data.MaxTrackedConnections < 1 {
		result.AddError("browser_data.max_tracked_connections",
			"tracked connection cap must be at least 1")
	}
}

func validateApplicationData(data *ApplicationData, result *ValidationResult) {
	if data.Timers.AuditFlushInterval < 5 {
		result.AddWarning("application_data.timers.audit_flush_interval_sec",
			"audit flush interval below 5s causes excessive disk writes")
	}

	if data.API.Enabled {
		validatePort(data.API.Port, "application_data.api.port", result)
		if data.API.RateLimitRPS < 1 {
			result.AddWarning("application_data.api.rate_limit_rps",
				"rate limit is disabled (0 RPS), this may expose the API to abuse")
		}
	}

	if data.MQTT.Enabled {
		if strings.TrimSpace(data.MQTT.BrokerURL) == "" {
			result.AddError("application_data.mqtt.broker_url", "MQTT broker URL is required when enabled")
		}
		if data.MQTT.Port < 1 || data.MQTT.Port > 65535 {
			result.AddError("application_data.mqtt.port", "invalid MQTT port")
		}
	}
}

func validatePort(port int, field string, result *ValidationResult) {
	if port < 1 || port > 65535 {
		result.AddError(field, fmt.Sprintf("invalid port number: %d (must be 1-65535)", port))
		return
	}
	if port < 1024 {
		result.AddWarning(field,
			fmt.Sprintf("port %d is a privileged port, may require elevated permissions", port))
	}
}
