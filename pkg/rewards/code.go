package rewards

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Aerovity/Orchestry/pkg/llm"
)

// levelValue is the reward granted per passed level. Four levels, total 1.0.
const levelValue = 0.25

// DefaultTestTimeout bounds each test-case subprocess.
const DefaultTestTimeout = 5 * time.Second

// TestCase is one input/expected pair for the Tests level. Input and Expected
// are Python literals spliced into the generated test script.
type TestCase struct {
	Input       string `json:"input"`
	Expected    string `json:"expected"`
	Description string `json:"description,omitempty"`
}

// CodeSubmission is the pair of function bodies extracted from a finished
// code-collaboration trajectory.
type CodeSubmission struct {
	HelperCode string
	MainCode   string
	HelperName string // expected helper name, empty to accept any
	MainName   string // expected main name, empty to accept any
	Tests      []TestCase
}

// LevelGatedEvaluator scores code collaboration on four gated levels:
// structure, syntax, test pass rate, and cooperation. Each level is worth
// 0.25 and is reachable only when every earlier level passed.
type LevelGatedEvaluator struct {
	pythonPath  string
	testTimeout time.Duration
	judge       llm.Judge
	logger      *zap.Logger
}

// NewLevelGatedEvaluator creates the evaluator. judge is optional: when nil
// the cooperation level falls back to the call-site heuristic alone.
func NewLevelGatedEvaluator(pythonPath string, testTimeout time.Duration, judge llm.Judge, logger *zap.Logger) *LevelGatedEvaluator {
	if pythonPath == "" {
		pythonPath = "python3"
	}
	if testTimeout <= 0 {
		testTimeout = DefaultTestTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LevelGatedEvaluator{
		pythonPath:  pythonPath,
		testTimeout: testTimeout,
		judge:       judge,
		logger:      logger,
	}
}

// Evaluate runs the four levels in order, stopping at the first failed gate.
func (e *LevelGatedEvaluator) Evaluate(ctx context.Context, sub CodeSubmission) Result {
	components := map[string]float64{
		"structure":   0,
		"syntax":      0,
		"tests":       0,
		"cooperation": 0,
	}
	result := Result{Components: components}

	// Level 1: both functions defined, names matching when required.
	helperFn, mainFn, ok := checkStructure(sub)
	if !ok {
		return result
	}
	components["structure"] = levelValue

	// Level 2: both snippets are valid Python.
	if !pythonParses(sub.HelperCode) || !pythonParses(sub.MainCode) {
		result.Total = components["structure"]
		return result
	}
	components["syntax"] = levelValue

	// Level 3: test pass rate.
	passRate := e.runTests(ctx, sub, mainFn)
	components["tests"] = levelValue * passRate

	// Level 4: cooperation, only reachable when something passed.
	if passRate > 0 && helperFn != "" {
		components["cooperation"] = levelValue * e.measureCooperation(ctx, sub.HelperCode, sub.MainCode, helperFn)
	}

	result.Total = components["structure"] + components["syntax"] + components["tests"] + components["cooperation"]
	return result
}

// checkStructure verifies both snippets define a function and returns the
// actual first function names.
func checkStructure(sub CodeSubmission) (helperFn, mainFn string, ok bool) {
	helperFuncs, _ := pythonFunctionNames(sub.HelperCode)
	mainFuncs, _ := pythonFunctionNames(sub.MainCode)

	if len(helperFuncs) == 0 || len(mainFuncs) == 0 {
		return "", "", false
	}

	helperFn, mainFn = helperFuncs[0], mainFuncs[0]
	if sub.HelperName != "" && helperFn != sub.HelperName {
		return "", "", false
	}
	if sub.MainName != "" && mainFn != sub.MainName {
		return "", "", false
	}
	return helperFn, mainFn, true
}

// runTests executes each test case in its own python3 subprocess and returns
// the pass rate. A timeout or crash counts as a failed test, never an error.
func (e *LevelGatedEvaluator) runTests(ctx context.Context, sub CodeSubmission, mainFn string) float64 {
	if len(sub.Tests) == 0 {
		return 0
	}

	passed := 0
	for _, test := range sub.Tests {
		if e.runSingleTest(ctx, sub, mainFn, test) {
			passed++
		}
	}
	return float64(passed) / float64(len(sub.Tests))
}

func (e *LevelGatedEvaluator) runSingleTest(ctx context.Context, sub CodeSubmission, mainFn string, test TestCase) bool {
	script := fmt.Sprintf("%s\n\n%s\n\n# Test execution\nresult = %s(%s)\nexpected = %s\nprint('PASS' if result == expected else 'FAIL')\n",
		sub.HelperCode, sub.MainCode, mainFn, test.Input, test.Expected)

	f, err := os.CreateTemp("", "orchestry-test-*.py")
	if err != nil {
		e.logger.Warn("failed to create test file", zap.Error(err))
		return false
	}
	defer os.Remove(f.Name())

	if _, err := f.WriteString(script); err != nil {
		f.Close()
		return false
	}
	f.Close()

	tctx, cancel := context.WithTimeout(ctx, e.testTimeout)
	defer cancel()

	out, err := exec.CommandContext(tctx, e.pythonPath, f.Name()).Output()
	if err != nil {
		e.logger.Debug("test execution failed",
			zap.String("test", test.Description),
			zap.Error(err))
		return false
	}
	return strings.Contains(string(out), "PASS")
}

// measureCooperation scores how well main uses the helper, 0 to 1. Without a
// judge, a called helper scores 1.0.
func (e *LevelGatedEvaluator) measureCooperation(ctx context.Context, helperCode, mainCode, helperFn string) float64 {
	if !strings.Contains(mainCode, helperFn+"(") {
		return 0
	}
	if e.judge == nil {
		return 1.0
	}
	return e.judgeCooperation(ctx, helperCode, mainCode)
}

var scorePattern = regexp.MustCompile(`0?\.\d+|[01](\.0+)?`)

// judgeCooperation asks the judge for a 0-1 cooperation score. Any failure
// degrades to the neutral 0.5 rather than failing the evaluation.
func (e *LevelGatedEvaluator) judgeCooperation(ctx context.Context, helperCode, mainCode string) float64 {
	prompt := fmt.Sprintf(`Evaluate the cooperation between these two functions:

**Helper Function:**
`+"```python\n%s\n```"+`

**Main Function:**
`+"```python\n%s\n```"+`

Rate the cooperation quality from 0.0 to 1.0:
- 1.0: Perfect cooperation, helper is essential and well-used
- 0.7: Good cooperation, helper is helpful
- 0.3: Weak cooperation, helper barely used or redundant
- 0.0: No meaningful cooperation

Respond with ONLY a number between 0.0 and 1.0.`, helperCode, mainCode)

	verdict, err := e.judge.Evaluate(ctx, prompt)
	if err != nil {
		e.logger.Warn("cooperation judge failed, using neutral score", zap.Error(err))
		return 0.5
	}

	match := scorePattern.FindString(verdict)
	if match == "" {
		return 0.5
	}
	score, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0.5
	}
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// FirstFunctionName returns the first function defined in code, or "" when
// none parses.
func FirstFunctionName(code string) string {
	names, _ := pythonFunctionNames(code)
	if len(names) == 0 {
		return ""
	}
	return names[0]
}
