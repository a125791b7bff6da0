package command

import (
	"reflect"
	"testing"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"simple", "git status", []string{"git", "status"}},
		{"extra whitespace", "  ls   -la\t/tmp ", []string{"ls", "-la", "/tmp"}},
		{"double quoted arg", `git commit -m "fix: handle spaces"`, []string{"git", "commit", "-m", "fix: handle spaces"}},
		{"single quoted arg", `echo 'hello world'`, []string{"echo", "hello world"}},
		{"single quotes are literal", `echo 'a \" b'`, []string{"echo", `a \" b`}},
		{"escape in double quotes", `echo "say \"hi\""`, []string{"echo", `say "hi"`}},
		{"unquoted backslash escape", `echo a\ b`, []string{"echo", "a b"}},
		{"adjacent quoted pieces", `echo a'b c'd`, []string{"echo", "ab cd"}},
		{"empty quoted token", `grep "" file`, []string{"grep", "", "file"}},
		{"empty input", "", nil},
		{"whitespace only", "   \t ", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Tokenize(tt.text)
			if err != nil {
				t.Fatalf("Tokenize(%q) returned error: %v", tt.text, err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Tokenize(%q) = %#v, want %#v", tt.text, got, tt.want)
			}
		})
	}
}

func TestTokenizeErrors(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"unterminated single quote", "echo 'oops"},
		{"unterminated double quote", `echo "oops`},
		{"trailing backslash", `echo oops\`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Tokenize(tt.text); err == nil {
				t.Errorf("Tokenize(%q) succeeded, want error", tt.text)
			}
		})
	}
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"plain command untouched", "git status", "git status"},
		{"strips and-chain", "ls && rm x", "ls  rm x"},
		{"strips or-chain", "true || false", "true  false"},
		{"strips semicolons", "ls; whoami", "ls whoami"},
		{"strips backticks", "echo `id`", "echo id"},
		{"strips command substitution", "echo $(whoami)", "echo whoami"},
		{"keeps lone pipe", "cat f | wc -l", "cat f | wc -l"},
		{"keeps single ampersand", "grep a & b", "grep a & b"},
		{"keeps dollar without paren", "echo $HOME", "echo $HOME"},
		{"keeps quoted semicolon", `git commit -m "a; b"`, `git commit -m "a; b"`},
		{"keeps quoted chaining", `echo 'a && b'`, `echo 'a && b'`},
		{"bare closing paren survives", "echo )", "echo )"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sanitize(tt.text); got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}
