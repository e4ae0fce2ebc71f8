package sanitize

import (
	"testing"
)

func TestText(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "Windows line endings (CRLF)",
			input:    "line1\r\nline2",
			expected: "line1\nline2",
		},
		{
			name:     "Mac line endings (CR)",
			input:    "line1\rline2",
			expected: "line1\nline2",
		},
		{
			name:     "Blank lines collapse",
			input:    "line1\n\n\nline2",
			expected: "line1\nline2",
		},
		{
			name:     "Zero-width space",
			input:    "name\u200Bwith\u200Bzero",
			expected: "namewithzero",
		},
		{
			name:     "BOM",
			input:    "\uFEFFreport.pdf",
			expected: "report.pdf",
		},
		{
			name:     "Soft hyphen",
			input:    "re\u00ADport",
			expected: "report",
		},
		{
			name:     "Terminal escape sequence",
			input:    "\x1b[2Jclip.mp4",
			expected: "[2Jclip.mp4",
		},
		{
			name:     "Bidi override",
			input:    "invoice\u202Efdp.exe",
			expected: "invoicefdp.exe",
		},
		{
			name:     "Emoji joiner kept",
			input:    "family \U0001F468\u200D\U0001F469",
			expected: "family \U0001F468\u200D\U0001F469",
		},
		{
			name:     "Multiple spaces and tabs",
			input:    "a  b\t\tc",
			expected: "a b c",
		},
		{
			name:     "Trim",
			input:    "  padded  ",
			expected: "padded",
		},
		{
			name:     "Empty",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Text(tt.input); got != tt.expected {
				t.Errorf("Text(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestLine(t *testing.T) {
	if got := Line("first\r\n second\nthird"); got != "first second third" {
		t.Errorf("Line() = %q", got)
	}
}
