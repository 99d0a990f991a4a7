package redis

import "fmt"

const (
	KeyPrefixRegistry = "ckan"

	KeyModuleModules = "modules"
	KeyActionDoc     = "doc"

	KeyModulePublisher = "publisher"
	KeyActionSession   = "session"

	NamespacePublicAccess = "public_access"
)

// BuildModuleDocKey names the packed document cache entry for one module.
func BuildModuleDocKey(identifier string) string {
	return fmt.Sprintf("%s:%s:%s:%s", KeyPrefixRegistry, KeyModuleModules, KeyActionDoc, identifier)
}

func BuildPublisherSessionKey(publisher, tokenID string) string {
	return fmt.Sprintf("%s:%s:%s:%s:%s", KeyPrefixRegistry, KeyModulePublisher, KeyActionSession, publisher, tokenID)
}

func BuildPublisherSessionPattern(publisher string) string {
	return fmt.Sprintf("%s:%s:%s:%s:*", KeyPrefixRegistry, KeyModulePublisher, KeyActionSession, publisher)
}

// ModuleCachePattern matches every public response cached under a
// module's path, including subpaths like /releases.
func ModuleCachePattern(identifier string) string {
	return fmt.Sprintf("%s:/public/module/%s*", NamespacePublicAccess, identifier)
}

// ModuleIndexPattern matches the cached module index pages.
func ModuleIndexPattern() string {
	return fmt.Sprintf("%s:/public/modules:query=*", NamespacePublicAccess)
}
