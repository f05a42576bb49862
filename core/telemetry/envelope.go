package telemetry

import (
	"fmt"
	"strconv"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/microsoft/ApplicationInsights-Go/appinsights/contracts"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Envelope converts the item into an Application Insights envelope. Property
// values are stringified and every field is sanitized to the schema limits;
// sanitizer warnings are logged at debug level.
func (i *Item) Envelope(iKey string, logger *zap.Logger) (*contracts.Envelope, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	envelope := contracts.NewEnvelope()
	envelope.IKey = iKey
	envelope.Time = i.Time.UTC().Format(time.RFC3339Nano)
	envelope.Tags = make(map[string]string, len(i.Tags))
	for k, v := range i.Tags {
		envelope.Tags[k] = v
	}

	data := contracts.NewData()
	var dataSanitizeFunc func() []string

	switch {
	case i.Request != nil:
		r := i.Request
		requestData := contracts.NewRequestData()
		requestData.Id = r.ID
		requestData.Name = r.Name
		requestData.Url = r.URL
		requestData.Source = r.Source
		requestData.ResponseCode = strconv.FormatInt(r.ResponseCode, 10)
		requestData.Success = r.Success
		requestData.Duration = FormatDuration(r.Duration)
		requestData.Properties = stringifyProperties(r.Properties)
		requestData.Measurements = copyMeasurements(r.Measurements)

		envelope.Name = requestData.EnvelopeName("")
		data.BaseData = requestData
		data.BaseType = requestData.BaseType()
		dataSanitizeFunc = requestData.Sanitize
	case i.Dependency != nil:
		d := i.Dependency
		dependencyData := contracts.NewRemoteDependencyData()
		dependencyData.Id = d.ID
		dependencyData.Name = d.Name
		dependencyData.Type = d.Type
		dependencyData.Target = d.Target
		dependencyData.Data = d.Data
		if d.ResponseCode != 0 {
			dependencyData.ResultCode = strconv.FormatInt(d.ResponseCode, 10)
		}
		dependencyData.Success = d.Success
		dependencyData.Duration = FormatDuration(d.Duration)
		dependencyData.Properties = stringifyProperties(d.Properties)
		dependencyData.Measurements = copyMeasurements(d.Measurements)

		envelope.Name = dependencyData.EnvelopeName("")
		data.BaseData = dependencyData
		data.BaseType = dependencyData.BaseType()
		dataSanitizeFunc = dependencyData.Sanitize
	default:
		return nil, fmt.Errorf("telemetry item has no data for base type %q", i.BaseType)
	}

	envelope.Data = data

	sanitize(dataSanitizeFunc, logger)
	sanitize(func() []string { return envelope.Sanitize() }, logger)
	sanitize(func() []string { return contracts.SanitizeTags(envelope.Tags) }, logger)

	return envelope, nil
}

// MarshalEnvelope serializes the item as an Application Insights envelope.
func (i *Item) MarshalEnvelope(iKey string, logger *zap.Logger) ([]byte, error) {
	envelope, err := i.Envelope(iKey, logger)
	if err != nil {
		return nil, err
	}
	b, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal envelope: %w", err)
	}
	return b, nil
}

// FormatDuration renders d in the d.hh:mm:ss.fffffff form used by the
// backend schema.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	ticks := int64(d/(100*time.Nanosecond)) % 10000000
	seconds := int64(d/time.Second) % 60
	minutes := int64(d/time.Minute) % 60
	hours := int64(d/time.Hour) % 24
	days := int64(d / (24 * time.Hour))
	return fmt.Sprintf("%d.%02d:%02d:%02d.%07d", days, hours, minutes, seconds, ticks)
}

func stringifyProperties(props map[string]any) map[string]string {
	out := make(map[string]string, len(props))
	for k, v := range props {
		out[k] = stringifyValue(v)
	}
	return out
}

func stringifyValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	}
	if b, err := json.Marshal(v); err == nil {
		return string(b)
	}
	return fmt.Sprint(v)
}

func copyMeasurements(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func sanitize(sanitizeFunc func() []string, logger *zap.Logger) {
	for _, warning := range sanitizeFunc() {
		logger.Debug(warning)
	}
}
