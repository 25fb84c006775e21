package trailhead

// NodeKind classifies a symbol node. The integer values are the bit flags
// the Sourcetrail reader stores in node.type and must not be renumbered.
type NodeKind int32

const (
	NodeSymbol NodeKind = 1 << iota
	NodeType
	NodeBuiltinType
	NodeModule
	NodeNamespace
	NodePackage
	NodeStruct
	NodeClass
	NodeInterface
	NodeAnnotation
	NodeGlobalVariable
	NodeField
	NodeFunction
	NodeMethod
	NodeEnum
	NodeEnumConstant
	NodeTypedef
	NodeTypeParameter
	NodeFile
	NodeMacro
	NodeUnion
)

// Valid reports whether k is one of the storable node kinds.
func (k NodeKind) Valid() bool {
	return k >= NodeSymbol && k <= NodeUnion && k&(k-1) == 0
}

// EdgeKind classifies a relationship between two nodes. Values are the
// reader's bit flags for edge.type.
type EdgeKind int32

const EdgeUndefined EdgeKind = 0

const (
	EdgeMember EdgeKind = 1 << iota
	EdgeTypeUsage
	EdgeUsage
	EdgeCall
	EdgeInheritance
	EdgeOverride
	EdgeTypeArgument
	EdgeTemplateSpecialization
	EdgeInclude
	EdgeImport
	EdgeBundledEdges
	EdgeMacroUsage
	EdgeAnnotationUsage
)

// Valid reports whether k is one of the storable edge kinds.
func (k EdgeKind) Valid() bool {
	return k >= EdgeMember && k <= EdgeAnnotationUsage && k&(k-1) == 0
}

// LocationKind classifies a source range. Values match the reader's
// source_location.type column.
type LocationKind int32

const (
	LocationToken LocationKind = iota
	LocationScope
	LocationQualifier
	LocationLocalSymbol
	LocationSignature
	LocationAtomicRange
	LocationIndexerError
	LocationFulltextSearch
	LocationScreenSearch
	LocationUnsolved
)

// Valid reports whether k is one of the storable location kinds.
func (k LocationKind) Valid() bool {
	return k >= LocationToken && k <= LocationUnsolved
}

// DefinitionKind records how a symbol's definition was established.
type DefinitionKind int32

const (
	DefinitionNone DefinitionKind = iota
	DefinitionImplicit
	DefinitionExplicit
)

// AccessKind records a member's access specifier, stored in the
// component_access table.
type AccessKind int32

const (
	AccessNone AccessKind = iota
	AccessPublic
	AccessProtected
	AccessPrivate
	AccessDefault
	AccessTemplateParameter
	AccessTypeParameter
)

// Valid reports whether a is one of the storable access kinds.
func (a AccessKind) Valid() bool {
	return a >= AccessNone && a <= AccessTypeParameter
}
