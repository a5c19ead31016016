package policy

// DefaultDocument returns the policy written the first time mandate runs in
// a project with no existing policy.json. File create, read and update
// accept any path under cwd (the "" prefix), file delete is denied, todo
// operations need no confirmation, and commands have an empty allowlist
// (any base command) with a short blocklist; file create/update and
// commands require confirmation.
func DefaultDocument() *Document {
	return &Document{
		Version: "1",
		Global: GlobalConfig{
			BlockedExtensions: []string{".env", ".pem", ".key"},
			MaxFileSizeMB:     10,
			AutoBackup:        false,
		},
		Tools: map[string]ToolPolicy{
			"file-tool": {
				Create: CRUDPolicy{AllowedDirectories: []string{"src/", "tests/", ""}, ConfirmationRequired: true},
				Read:   CRUDPolicy{AllowedDirectories: []string{""}, ConfirmationRequired: false},
				Update: CRUDPolicy{AllowedDirectories: []string{"src/", "tests/", ""}, ConfirmationRequired: true},
				Delete: CRUDPolicy{AllowedDirectories: []string{}, ConfirmationRequired: true},
			},
			"todo-tool": {
				Create: CRUDPolicy{AllowedDirectories: []string{""}, ConfirmationRequired: false},
				Read:   CRUDPolicy{AllowedDirectories: []string{""}, ConfirmationRequired: false},
				Update: CRUDPolicy{AllowedDirectories: []string{""}, ConfirmationRequired: false},
				Delete: CRUDPolicy{AllowedDirectories: []string{""}, ConfirmationRequired: false},
			},
			"command-tool": {
				Create: CRUDPolicy{
					AllowedDirectories: []string{""},
					ConfirmationRequired: true,
					AllowedCommands:      []string{},
					BlockedCommands:      []string{"rm -rf /", "mkfs", ":(){:|:&};:"},
				},
			},
		},
	}
}
