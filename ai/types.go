package ai

// EntityTypes defines the valid categories for extracted entities.
// These are deliberately coarse; the graph keys entities by (type, name).
var EntityTypes = []string{
	"technology",
	"software",
	"service",
	"library",
	"protocol",
	"vulnerability",
	"organization",
	"person",
	"place",
	"product",
	"standard",
	"file_format",
	"programming_language",
	"operating_system",
	"abstract_concept",
}
