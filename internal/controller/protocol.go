package controller

import "strings"

// replyKind is the shape of the controller's answer to a command.
type replyKind uint8

const (
	// replyString is '#'-terminated text.
	replyString replyKind = iota
	// replyBool is a single '0' or '1' with no terminator.
	replyBool
	// replyNone means the controller sends nothing back.
	replyNone
)

// terminator ends command and string-reply frames.
const terminator = '#'

// noReply lists complete commands the controller never answers.
var noReply = map[string]bool{
	":Q#": true, ":Qe#": true, ":Qw#": true, ":Qn#": true, ":Qs#": true,
	":Me#": true, ":Mw#": true, ":Mn#": true, ":Ms#": true,
	":RG#": true, ":RC#": true, ":RM#": true, ":RS#": true,
	":R0#": true, ":R1#": true, ":R2#": true, ":R3#": true, ":R4#": true,
	":R5#": true, ":R6#": true, ":R7#": true, ":R8#": true, ":R9#": true,
	":T+#": true, ":T-#": true,
}

// boolPrefixes lists mnemonic prefixes answered with a bare '0' or '1'.
var boolPrefixes = []string{
	":S",  // setters
	":Lo", // select catalog
	":LC", // catalog item select
	":LL", // clear catalog
	":L!", // delete catalog item
	":hP", // park
	":hR", // unpark
	":hQ", // set park position
	":Te", // tracking on
	":Td", // tracking off
}

// replyKindOf classifies cmd by its mnemonic.
func replyKindOf(cmd string) replyKind {
	if noReply[cmd] {
		return replyNone
	}
	for _, p := range boolPrefixes {
		if strings.HasPrefix(cmd, p) {
			return replyBool
		}
	}
	return replyString
}
