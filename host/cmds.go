package host

import "github.com/beevik/cmd"

var cmds *cmd.Tree

// commandList doubles as the registration source and the help display
// table.
var commandList = []cmd.CommandDescriptor{
	{
		Name:        "help",
		Brief:       "Display help for a command",
		Description: "Display help for a command.",
		Usage:       "help [<command>]",
		Data:        (*Host).cmdHelp,
	},
	{
		Name:  "assemble",
		Brief: "Assemble a source file",
		Description: "Run the assembler on the named file stem, reading" +
			" <stem>.as and producing <stem>.am, <stem>.ob and, as needed," +
			" <stem>.ent and <stem>.ext. On success the translation unit" +
			" stays loaded for inspection with the symbols, entries and" +
			" externals commands.",
		Usage: "assemble <stem>",
		Data:  (*Host).cmdAssemble,
	},
	{
		Name:  "symbols",
		Brief: "List the symbol table",
		Description: "Display every symbol of the last assembled file" +
			" with its kind, address and value.",
		Usage: "symbols",
		Data:  (*Host).cmdSymbols,
	},
	{
		Name:  "entries",
		Brief: "List exported entry symbols",
		Description: "Display the entry symbols of the last assembled" +
			" file in the order they appear in the .ent file.",
		Usage: "entries",
		Data:  (*Host).cmdEntries,
	},
	{
		Name:  "externals",
		Brief: "List external references",
		Description: "Display every reference to an external symbol in" +
			" the last assembled file, in the order they appear in the" +
			" .ext file.",
		Usage: "externals",
		Data:  (*Host).cmdExternals,
	},
	{
		Name:  "object",
		Brief: "Dump an object file",
		Description: "Decode an .ob file and display its words. With no" +
			" argument, the object file of the last assembled stem is" +
			" used.",
		Usage: "object [<filename>]",
		Data:  (*Host).cmdObject,
	},
	{
		Name:  "set",
		Brief: "Set a configuration variable",
		Description: "Set the value of a configuration variable. Type the set" +
			" command without a variable name or value to display the current" +
			" values of all configuration variables.",
		Usage: "set [<var> <value>]",
		Data:  (*Host).cmdSet,
	},
	{
		Name:        "quit",
		Brief:       "Quit the program",
		Description: "Quit the program.",
		Usage:       "quit",
		Data:        (*Host).cmdQuit,
	},
}

func init() {
	root := cmd.NewTree(cmd.TreeDescriptor{Name: "go14asm"})
	for _, c := range commandList {
		root.AddCommand(c)
	}

	// Add command shortcuts.
	root.AddShortcut("a", "assemble")
	root.AddShortcut("s", "symbols")
	root.AddShortcut("e", "entries")
	root.AddShortcut("x", "externals")
	root.AddShortcut("o", "object")
	root.AddShortcut("?", "help")

	cmds = root
}
