package mapping

import (
	"github.com/deepaksharma/spancore/core/attributes"
	"github.com/deepaksharma/spancore/core/telemetry"
)

// ResourceTags derives the cloud role tags of the service that emitted a
// batch of spans. get looks up a resource attribute as a string.
func ResourceTags(get func(key string) (string, bool)) map[string]string {
	tags := make(map[string]string, 2)

	if name, ok := get(attributes.ServiceName); ok && name != "" {
		role := name
		if ns, ok := get(attributes.ServiceNamespace); ok && ns != "" {
			role = "[" + ns + "]/" + name
		}
		tags[telemetry.TagCloudRole] = role
	}

	if id, ok := get(attributes.ServiceInstanceID); ok && id != "" {
		tags[telemetry.TagCloudRoleInstance] = id
	} else if host, ok := get(attributes.HostName); ok && host != "" {
		tags[telemetry.TagCloudRoleInstance] = host
	}

	return tags
}

// ApplyResourceTags copies tags into item without overriding tags the span
// already set.
func ApplyResourceTags(item *telemetry.Item, tags map[string]string) {
	if item == nil {
		return
	}
	if item.Tags == nil {
		item.Tags = make(map[string]string, len(tags))
	}
	for k, v := range tags {
		if _, ok := item.Tags[k]; !ok {
			item.Tags[k] = v
		}
	}
}
