// File: internal/regexscan/catalog.go
// Description: the fixed regular-expression catalog RegexDetector runs
// line-by-line. This is the fallback path for languages ASTEngine doesn't
// support, and the sole detector for the fast inline-PR-analysis path.
package regexscan

import (
	"regexp"

	"github.com/codeguard-pro/codeguard/api/schemas"
)

// entry is one catalog rule: a compiled pattern, the message to report on a
// match, the BugKind it maps to, and its severity.
type entry struct {
	theme    string
	pattern  *regexp.Regexp
	message  string
	bugType  schemas.BugKind
	severity schemas.Severity
}

// catalog is the ~50-entry fixed detector table. Patterns are intentionally
// conservative (line-local, no cross-line state) since RegexDetector never
// sees more than one line at a time.
var catalog = []entry{
	// -- secrets --
	{"secrets", regexp.MustCompile(`(?i)(api[_-]?key|secret|password|token)\s*[:=]\s*['"][A-Za-z0-9+/=_\-]{12,}['"]`), "hardcoded credential or secret", schemas.BugLogic, schemas.SeverityCritical},
	{"secrets", regexp.MustCompile(`(?i)aws_secret_access_key\s*[:=]`), "hardcoded AWS secret access key", schemas.BugLogic, schemas.SeverityCritical},
	{"secrets", regexp.MustCompile(`-----BEGIN (RSA|EC|DSA|OPENSSH) PRIVATE KEY-----`), "embedded private key material", schemas.BugLogic, schemas.SeverityCritical},
	{"secrets", regexp.MustCompile(`(?i)Bearer\s+[A-Za-z0-9\-_.]{20,}`), "hardcoded bearer token", schemas.BugLogic, schemas.SeverityCritical},
	{"secrets", regexp.MustCompile(`(?i)gh[pousr]_[A-Za-z0-9]{30,}`), "hardcoded GitHub access token", schemas.BugLogic, schemas.SeverityCritical},

	// -- weak crypto --
	{"weak-crypto", regexp.MustCompile(`(?i)\b(md5|sha1)\s*\(`), "use of a broken hash algorithm", schemas.BugLogic, schemas.SeverityWarning},
	{"weak-crypto", regexp.MustCompile(`(?i)\bDES\s*\(`), "use of the DES cipher, considered broken", schemas.BugLogic, schemas.SeverityWarning},
	{"weak-crypto", regexp.MustCompile(`(?i)createCipher\s*\(\s*['"]des`), "DES cipher instantiation", schemas.BugLogic, schemas.SeverityWarning},
	{"weak-crypto", regexp.MustCompile(`(?i)\bECB\b`), "ECB cipher mode leaks structure, avoid it", schemas.BugLogic, schemas.SeverityWarning},

	// -- insecure random --
	{"insecure-random", regexp.MustCompile(`\bMath\.random\s*\(\s*\)`), "Math.random is not cryptographically secure", schemas.BugLogic, schemas.SeverityWarning},
	{"insecure-random", regexp.MustCompile(`(?i)\brandom\.random\s*\(\s*\)`), "random.random is not cryptographically secure", schemas.BugLogic, schemas.SeverityWarning},
	{"insecure-random", regexp.MustCompile(`\bnew\s+Random\s*\(\s*\)`), "java.util.Random is not cryptographically secure", schemas.BugLogic, schemas.SeverityWarning},

	// -- SSL/TLS disabled --
	{"ssl-disabled", regexp.MustCompile(`(?i)rejectUnauthorized\s*[:=]\s*false`), "TLS certificate validation disabled", schemas.BugLogic, schemas.SeverityCritical},
	{"ssl-disabled", regexp.MustCompile(`(?i)verify\s*=\s*False`), "TLS certificate validation disabled", schemas.BugLogic, schemas.SeverityCritical},
	{"ssl-disabled", regexp.MustCompile(`InsecureSkipVerify\s*:\s*true`), "TLS certificate validation disabled", schemas.BugLogic, schemas.SeverityCritical},
	{"ssl-disabled", regexp.MustCompile(`(?i)NODE_TLS_REJECT_UNAUTHORIZED\s*=\s*['"]?0`), "TLS certificate validation disabled process-wide", schemas.BugLogic, schemas.SeverityCritical},

	// -- XSS --
	{"xss", regexp.MustCompile(`\.innerHTML\s*=`), "assigning to innerHTML risks XSS if the value is not sanitized", schemas.BugLogic, schemas.SeverityWarning},
	{"xss", regexp.MustCompile(`dangerouslySetInnerHTML`), "dangerouslySetInnerHTML risks XSS if the value is not sanitized", schemas.BugLogic, schemas.SeverityWarning},
	{"xss", regexp.MustCompile(`document\.write\s*\(`), "document.write risks XSS and breaks streaming rendering", schemas.BugLogic, schemas.SeverityWarning},
	{"xss", regexp.MustCompile(`(?i)\|\s*safe\b`), "marking template output safe bypasses autoescaping", schemas.BugLogic, schemas.SeverityWarning},

	// -- eval/exec --
	{"eval-exec", regexp.MustCompile(`\beval\s*\(`), "eval() executes arbitrary code", schemas.BugLogic, schemas.SeverityCritical},
	{"eval-exec", regexp.MustCompile(`\bnew\s+Function\s*\(`), "new Function() is equivalent to eval", schemas.BugLogic, schemas.SeverityWarning},
	{"eval-exec", regexp.MustCompile(`(?i)\bexec\s*\(\s*['"]`), "exec() of a literal string can hide arbitrary execution", schemas.BugLogic, schemas.SeverityWarning},
	{"eval-exec", regexp.MustCompile(`\b__import__\s*\(`), "dynamic __import__ call", schemas.BugLogic, schemas.SeverityInfo},

	// -- SQL injection --
	{"sqli", regexp.MustCompile(`(?i)(SELECT|INSERT|UPDATE|DELETE)\s+.*['"]\s*\+\s*\w+`), "string-concatenated SQL query risks injection", schemas.BugLogic, schemas.SeverityCritical},
	{"sqli", regexp.MustCompile(`(?i)\.query\s*\(\s*['"\x60].*\$\{`), "template-interpolated SQL query risks injection", schemas.BugLogic, schemas.SeverityCritical},
	{"sqli", regexp.MustCompile(`(?i)cursor\.execute\s*\(\s*['"].*%s`), "printf-style SQL query risks injection", schemas.BugLogic, schemas.SeverityCritical},
	{"sqli", regexp.MustCompile(`(?i)String\.format\s*\(\s*['"].*SELECT`), "format-string SQL query risks injection", schemas.BugLogic, schemas.SeverityCritical},

	// -- command injection --
	{"command-injection", regexp.MustCompile(`(?i)child_process\.exec\s*\(\s*[^'"]`), "exec with an unescaped variable risks command injection", schemas.BugLogic, schemas.SeverityCritical},
	{"command-injection", regexp.MustCompile(`(?i)os\.system\s*\(\s*[^'"]`), "os.system with an unescaped variable risks command injection", schemas.BugLogic, schemas.SeverityCritical},
	{"command-injection", regexp.MustCompile(`(?i)subprocess\.(call|run|Popen)\s*\([^)]*shell\s*=\s*True`), "subprocess with shell=True risks command injection", schemas.BugLogic, schemas.SeverityWarning},
	{"command-injection", regexp.MustCompile(`Runtime\.getRuntime\(\)\.exec\s*\(`), "Runtime.exec with an unescaped variable risks command injection", schemas.BugLogic, schemas.SeverityWarning},

	// -- CORS wildcard --
	{"cors", regexp.MustCompile(`(?i)Access-Control-Allow-Origin['"]?\s*[:,]\s*['"]\*`), "wildcard CORS origin allows any site to read responses", schemas.BugLogic, schemas.SeverityWarning},
	{"cors", regexp.MustCompile(`(?i)cors\(\s*\{\s*origin\s*:\s*['"]\*`), "wildcard CORS origin allows any site to read responses", schemas.BugLogic, schemas.SeverityWarning},

	// -- debug statements --
	{"debug", regexp.MustCompile(`console\.log\s*\(`), "debug statement left in source", schemas.BugLinting, schemas.SeverityInfo},
	{"debug", regexp.MustCompile(`console\.debug\s*\(`), "debug statement left in source", schemas.BugLinting, schemas.SeverityInfo},
	{"debug", regexp.MustCompile(`^\s*print\s*\(`), "debug statement left in source", schemas.BugLinting, schemas.SeverityInfo},
	{"debug", regexp.MustCompile(`(?i)\bdebugger\s*;?\s*$`), "debugger statement left in source", schemas.BugLinting, schemas.SeverityInfo},
	{"debug", regexp.MustCompile(`fmt\.Println\s*\(`), "debug statement left in source", schemas.BugLinting, schemas.SeverityInfo},

	// -- TODO/FIXME --
	{"todo", regexp.MustCompile(`(?i)//\s*(TODO|FIXME|HACK|XXX)\b`), "unresolved TODO/FIXME marker", schemas.BugLinting, schemas.SeverityInfo},
	{"todo", regexp.MustCompile(`(?i)#\s*(TODO|FIXME|HACK|XXX)\b`), "unresolved TODO/FIXME marker", schemas.BugLinting, schemas.SeverityInfo},

	// -- empty catch --
	{"empty-catch", regexp.MustCompile(`catch\s*\([^)]*\)\s*\{\s*\}`), "empty catch block swallows errors", schemas.BugLogic, schemas.SeverityWarning},
	{"empty-catch", regexp.MustCompile(`except\s*:\s*pass\s*$`), "bare except swallows all exceptions", schemas.BugLogic, schemas.SeverityWarning},
	{"empty-catch", regexp.MustCompile(`except\s+\w+\s*:\s*pass\s*$`), "except block swallows the error with no handling", schemas.BugLogic, schemas.SeverityWarning},

	// -- var/let and other style --
	{"style", regexp.MustCompile(`^\s*var\s+\w+\s*=`), "use let/const instead of var", schemas.BugLinting, schemas.SeverityInfo},
	{"style", regexp.MustCompile(`==\s*null\b`), "use strict equality instead of loose comparison with null", schemas.BugLinting, schemas.SeverityInfo},
	{"style", regexp.MustCompile(`!=\s*null\b`), "use strict inequality instead of loose comparison with null", schemas.BugLinting, schemas.SeverityInfo},
	{"style", regexp.MustCompile(`\t`), "tab character in indentation", schemas.BugIndentation, schemas.SeverityInfo},

	// -- misc security --
	{"misc", regexp.MustCompile(`(?i)\bpickle\.loads?\s*\(`), "deserializing untrusted data with pickle can execute arbitrary code", schemas.BugLogic, schemas.SeverityCritical},
	{"misc", regexp.MustCompile(`(?i)yaml\.load\s*\(\s*[^,)]+\)`), "yaml.load without a safe loader can execute arbitrary code", schemas.BugLogic, schemas.SeverityCritical},
	{"misc", regexp.MustCompile(`(?i)\bxml\.etree\.ElementTree\.parse\s*\(`), "XML parsing without entity-expansion limits risks XXE", schemas.BugLogic, schemas.SeverityWarning},
	{"misc", regexp.MustCompile(`(?i)\.setAttribute\s*\(\s*['"]href['"]\s*,\s*\w+`), "unsanitized href attribute risks javascript: URI injection", schemas.BugLogic, schemas.SeverityWarning},
}
