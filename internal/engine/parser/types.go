package parser

// Kind is the import/export kind marker carried by a statement or specifier.
type Kind string

const (
	KindValue  Kind = "value"
	KindType   Kind = "type"
	KindTypeof Kind = "typeof"
)

// Mode selects how generated imports are rendered for a file.
type Mode string

const (
	ModeImport  Mode = "import"
	ModeRequire Mode = "require"
)

type DeclarationType string

const (
	DeclImport        DeclarationType = "ImportDeclaration"
	DeclExportNamed   DeclarationType = "ExportNamedDeclaration"
	DeclExportDefault DeclarationType = "ExportDefaultDeclaration"
	DeclExportAll     DeclarationType = "ExportAllDeclaration"
	DeclDeclareModule DeclarationType = "DeclareModule"
)

type SpecifierType string

const (
	SpecImportDefault   SpecifierType = "ImportDefaultSpecifier"
	SpecImportNamespace SpecifierType = "ImportNamespaceSpecifier"
	SpecImportNamed     SpecifierType = "ImportSpecifier"
	SpecExport          SpecifierType = "ExportSpecifier"
	SpecExportNamespace SpecifierType = "ExportNamespaceSpecifier"
)

// Specifier is one binding of an import or export statement.
//
// For imports Imported is the exported name in the source module and Local
// the binding created in the importing file. For exports Local is the binding
// being exported and Exported the name other modules import it by.
type Specifier struct {
	Type     SpecifierType `json:"type"`
	Imported string        `json:"imported,omitempty"`
	Local    string        `json:"local,omitempty"`
	Exported string        `json:"exported,omitempty"`
	Kind     Kind          `json:"kind,omitempty"`
}

type BindingType string

const (
	BindingClass      BindingType = "ClassDeclaration"
	BindingFunction   BindingType = "FunctionDeclaration"
	BindingVariable   BindingType = "VariableDeclaration"
	BindingTypeAlias  BindingType = "TypeAlias"
	BindingInterface  BindingType = "InterfaceDeclaration"
	BindingEnum       BindingType = "EnumDeclaration"
	BindingNamespace  BindingType = "NamespaceDeclaration"
	BindingIdentifier BindingType = "Identifier"
)

// Binding is a name introduced by an exported declaration.
type Binding struct {
	Type BindingType `json:"type"`
	Name string      `json:"name"`
}

// Declaration is a module-level statement that affects what a file imports or
// exports.
type Declaration struct {
	Type       DeclarationType `json:"type"`
	Kind       Kind            `json:"kind,omitempty"`
	Source     string          `json:"source,omitempty"`
	Specifiers []Specifier     `json:"specifiers,omitempty"`
	// Bindings lists the names declared by `export <declaration>` or
	// `export default <declaration>`. Anonymous defaults have none.
	Bindings []Binding `json:"bindings,omitempty"`
	// Body holds the export statements of an ambient module.
	Body []Declaration `json:"body,omitempty"`
}

// Position is a 1-based line and 0-based column.
type Position struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// UndefinedIdentifier is a reference with no binding in scope.
type UndefinedIdentifier struct {
	Identifier string   `json:"identifier"`
	Start      Position `json:"start"`
	End        Position `json:"end"`
	Context    string   `json:"context"`
	Kind       Kind     `json:"kind,omitempty"`
}
