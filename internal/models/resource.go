package models

import (
	"net/http"
	"sort"
)

// Resource describes a document collection exposed over REST and the query
// keys clients may filter it by.
type Resource struct {
	Name         string
	Collection   string
	FilterKeys   []string
	ObjectIDKeys []string
	Countable    bool
	// Methods lists the verbs the REST surface implements for the resource.
	Methods []string
	// ImportTask, when set, makes POST enqueue that task instead of inserting.
	ImportTask string
	// New returns an empty document used to decode create/update payloads.
	New func() Stampable
}

// Allows reports whether key is on the filter allow-list.
func (r Resource) Allows(key string) bool {
	return contains(r.FilterKeys, key)
}

// Supports reports whether the resource implements method.
func (r Resource) Supports(method string) bool {
	if method == http.MethodHead {
		method = http.MethodGet
	}
	return contains(r.Methods, method)
}

// IsObjectIDKey reports whether values of key are store identifiers.
func (r Resource) IsObjectIDKey(key string) bool {
	return contains(r.ObjectIDKeys, key)
}

func contains(list []string, key string) bool {
	for _, k := range list {
		if k == key {
			return true
		}
	}
	return false
}

// Registered resources.
var (
	ResourceJob = Resource{
		Name:         "job",
		Collection:   CollectionJob,
		FilterKeys:   []string{"_id", "job", "kernel", "git_branch", "git_commit", "git_url", "status"},
		ObjectIDKeys: []string{"_id"},
		Countable:    true,
		Methods:      []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		New:          func() Stampable { return &Job{} },
	}
	ResourceBuild = Resource{
		Name:       "build",
		Collection: CollectionBuild,
		FilterKeys: []string{
			"_id", "job", "job_id", "kernel", "defconfig", "defconfig_full", "arch",
			"git_branch", "git_commit", "status", "build_type",
		},
		ObjectIDKeys: []string{"_id", "job_id"},
		Countable:    true,
		Methods:      []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		ImportTask:   "import_build",
		New:          func() Stampable { return &Build{} },
	}
	ResourceBoot = Resource{
		Name:       "boot",
		Collection: CollectionBoot,
		FilterKeys: []string{
			"_id", "board", "board_instance", "job", "job_id", "kernel", "defconfig",
			"defconfig_full", "build_id", "lab_name", "arch", "mach", "git_branch",
			"git_commit", "status", "boot_result_description",
		},
		ObjectIDKeys: []string{"_id", "job_id", "build_id"},
		Countable:    true,
		Methods:      []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		ImportTask:   "import_boot",
		New:          func() Stampable { return &Boot{} },
	}
	ResourceTest = Resource{
		Name:       "test",
		Collection: CollectionTest,
		FilterKeys: []string{
			"_id", "name", "job", "kernel", "board", "lab_name", "arch",
			"defconfig_full", "build_id", "boot_id", "status",
		},
		ObjectIDKeys: []string{"_id", "build_id", "boot_id"},
		Countable:    true,
		Methods:      []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		New:          func() Stampable { return &TestSuite{} },
	}
	ResourceToken = Resource{
		Name:         "token",
		Collection:   CollectionToken,
		FilterKeys:   []string{"_id", "email", "username"},
		ObjectIDKeys: []string{"_id"},
		Methods:      []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		New:          func() Stampable { return &Token{} },
	}
	ResourceBisect = Resource{
		Name:         "bisect",
		Collection:   CollectionBisect,
		FilterKeys:   []string{"_id", "type", "document_id", "job", "board", "defconfig_full", "lab_name", "arch"},
		ObjectIDKeys: []string{"_id", "document_id"},
		Methods:      []string{http.MethodGet, http.MethodPost},
		New:          func() Stampable { return &Bisect{} },
	}
)

var resourceRegistry = map[string]Resource{
	ResourceJob.Name:    ResourceJob,
	ResourceBuild.Name:  ResourceBuild,
	ResourceBoot.Name:   ResourceBoot,
	ResourceTest.Name:   ResourceTest,
	ResourceToken.Name:  ResourceToken,
	ResourceBisect.Name: ResourceBisect,
}

// LookupResource returns the registered resource with the given name.
func LookupResource(name string) (Resource, bool) {
	r, ok := resourceRegistry[name]
	return r, ok
}

// CountableResources returns every countable resource ordered by name.
func CountableResources() []Resource {
	out := make([]Resource, 0, len(resourceRegistry))
	for _, r := range resourceRegistry {
		if r.Countable {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
