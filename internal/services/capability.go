package services

import "strings"

// EditorCapability is the explicit proof that the caller may mutate the catalog. The
// zero value grants nothing; only GrantEditor mints a usable one.
type EditorCapability struct {
	granted bool
	subject string
}

// GrantEditor mints a capability for subject. Transport layers call it after they have
// verified the caller's role.
func GrantEditor(subject string) EditorCapability {
	return EditorCapability{granted: true, subject: strings.TrimSpace(subject)}
}

// Granted reports whether the capability authorises mutations.
func (c EditorCapability) Granted() bool { return c.granted }

// Subject identifies the editor for logs and change events.
func (c EditorCapability) Subject() string { return c.subject }

func requireEditor(c EditorCapability) error {
	if !c.granted {
		return ErrEditorCapabilityRequired
	}
	return nil
}
