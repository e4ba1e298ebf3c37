package remember

import "strings"

// Kind tells how a remembered text is dispatched.
type Kind int

const (
	KindFreeText Kind = iota
	KindCommand
	KindRecursive
)

func (k Kind) String() string {
	switch k {
	case KindCommand:
		return "command"
	case KindRecursive:
		return "recursive"
	default:
		return "free-text"
	}
}

// Instruction is remembered text resolved to either a command or free text.
type Instruction struct {
	Kind Kind
	Text string
	Name string
	Args []string
}

// Command is the dispatchable part of a command instruction.
type Command struct {
	Name string
	Args []string
	Text string
}

// CommandSet reports which command names the executor recognizes.
type CommandSet interface {
	Has(name string) bool
}

// reserved names would re-enter the queue if dispatched.
var reserved = map[string]bool{
	"perform":  true,
	"remember": true,
}

// Classify resolves text into an Instruction. The first word selects a
// command when it is known to commands or carries an "@" prefix; "perform"
// and "remember" are never dispatched. Everything else is free text.
func Classify(text string, commands CommandSet) Instruction {
	text = strings.TrimSpace(text)
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return Instruction{Kind: KindFreeText, Text: text}
	}

	head := strings.ToLower(fields[0])
	forced := strings.HasPrefix(head, "@")
	name := strings.TrimPrefix(head, "@")

	switch {
	case reserved[name]:
		return Instruction{Kind: KindRecursive, Text: text, Name: name}
	case name == "":
		return Instruction{Kind: KindFreeText, Text: text}
	case forced, commands != nil && commands.Has(name):
		return Instruction{Kind: KindCommand, Text: text, Name: name, Args: fields[1:]}
	default:
		return Instruction{Kind: KindFreeText, Text: text}
	}
}

func (i Instruction) Command() Command {
	return Command{Name: i.Name, Args: i.Args, Text: i.Text}
}
