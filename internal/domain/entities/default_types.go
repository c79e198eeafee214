package entities

// EntityTypeInfo describes one supported entity type.
type EntityTypeInfo struct {
	Type        EntityType
	Description string
}

// DefaultEntityTypes are the entity types the engine pseudonymizes.
var DefaultEntityTypes = []EntityTypeInfo{
	{
		Type:        EntityPerson,
		Description: "People, split into first and last name components",
	},
	{
		Type:        EntityLocation,
		Description: "Cities, regions, addresses and other places",
	},
	{
		Type:        EntityOrganization,
		Description: "Companies, institutions and other organisations",
	},
}

// DefaultTypes returns just the types for quick filtering.
func DefaultTypes() []EntityType {
	types := make([]EntityType, len(DefaultEntityTypes))
	for i, t := range DefaultEntityTypes {
		types[i] = t.Type
	}
	return types
}

// IsDefaultType checks if a type is one of the built-in types.
func IsDefaultType(t EntityType) bool {
	for _, info := range DefaultEntityTypes {
		if info.Type == t {
			return true
		}
	}
	return false
}
