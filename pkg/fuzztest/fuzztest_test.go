package fuzztest_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fuzztest/config"
	"fuzztest/internal/corpus"
	"fuzztest/internal/host"
	"fuzztest/internal/registry"
	"fuzztest/internal/runtime"
	"fuzztest/internal/types"
	"fuzztest/pkg/fuzztest"
)

// env isolates a test from the default registry and from the process exit.
type env struct {
	reg    *registry.Registry
	suite  *host.Suite
	stdout bytes.Buffer
	stderr bytes.Buffer
	exits  []int
}

func newEnv(names ...string) *env {
	e := &env{reg: registry.New(), suite: host.New(nil)}
	for _, name := range names {
		suite, test, _ := strings.Cut(name, ".")
		fuzztest.RegisterIn(e.reg, fuzztest.Here(), suite, test, func([]byte) error { return nil })
	}
	return e
}

func (e *env) options(extra ...fuzztest.Option) []fuzztest.Option {
	return append([]fuzztest.Option{
		fuzztest.WithRegistry(e.reg),
		fuzztest.WithSuite(e.suite),
		fuzztest.WithOutput(&e.stdout, &e.stderr),
		fuzztest.WithExit(func(code int) { e.exits = append(e.exits, code) }),
	}, extra...)
}

func writeInput(t *testing.T, db, test string, category corpus.Category, name, content string) {
	t.Helper()

	dir := filepath.Join(db, test, string(category))
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestInitFuzzTest_ListsTestsAndExits(t *testing.T) {
	e := newEnv("A.B")

	rt, rest := fuzztest.InitFuzzTest([]string{"--list_fuzz_tests"}, e.options()...)

	assert.Nil(t, rt)
	assert.Nil(t, rest)
	assert.Equal(t, "[*] Fuzz test: A.B\n", e.stdout.String())
	assert.Equal(t, []int{0}, e.exits)
	assert.Empty(t, e.suite.Cases())
}

func TestInitFuzzTest_AmbiguousSelectionExits(t *testing.T) {
	e := newEnv("S1.Fuzz1", "S2.Fuzz2")

	rt, _ := fuzztest.InitFuzzTest([]string{"--fuzz=Fuz"}, e.options()...)

	assert.Nil(t, rt)
	assert.Equal(t, []int{1}, e.exits)
	assert.Contains(t, e.stderr.String(), "Multiple fuzz tests match the name: Fuz")
	assert.Contains(t, e.stderr.String(), " S1.Fuzz1\n S2.Fuzz2\n")
	assert.Empty(t, e.suite.Cases())
}

func TestInitFuzzTest_UnknownSelectionExits(t *testing.T) {
	e := newEnv("S1.Fuzz1")

	rt, _ := fuzztest.InitFuzzTest([]string{"-fuzz", "Nope"}, e.options()...)

	assert.Nil(t, rt)
	assert.Equal(t, []int{1}, e.exits)
	assert.Contains(t, e.stderr.String(), "No fuzz test matches the name: Nope")
}

func TestInitFuzzTest_MalformedFlagExits(t *testing.T) {
	e := newEnv("A.B")

	rt, _ := fuzztest.InitFuzzTest([]string{"--fuzz_for=soon"}, e.options()...)

	assert.Nil(t, rt)
	assert.Equal(t, []int{2}, e.exits)
	assert.Contains(t, e.stderr.String(), "invalid fuzz duration")
}

func TestInitFuzzTest_RunMode(t *testing.T) {
	for _, tc := range []struct {
		name      string
		args      []string
		want      runtime.RunMode
		wantLimit time.Duration
		wantSet   bool
		filter    string
	}{
		{name: "no flags", want: runtime.UnitTest},
		{name: "corpus only", args: []string{"--corpus_database=/nowhere", "--replay_corpus"}, want: runtime.UnitTest},
		{name: "selected test", args: []string{"--fuzz=B"}, want: runtime.Fuzz, filter: "A.B"},
		{name: "empty selection", args: []string{"--fuzz="}, want: runtime.Fuzz, filter: "A.B"},
		{name: "finite duration", args: []string{"--fuzz_for=30s"}, want: runtime.Fuzz, wantLimit: 30 * time.Second, wantSet: true},
		{name: "zero duration", args: []string{"--fuzz_for=0s"}, want: runtime.UnitTest},
		{name: "infinite duration", args: []string{"--fuzz_for=inf"}, want: runtime.UnitTest},
	} {
		t.Run(tc.name, func(t *testing.T) {
			e := newEnv("A.B")

			rt, _ := fuzztest.InitFuzzTest(tc.args, e.options()...)
			require.NotNil(t, rt)
			assert.Empty(t, e.exits)

			assert.Equal(t, tc.want, rt.RunMode())
			limit, set := rt.FuzzTimeLimit()
			assert.Equal(t, tc.wantSet, set)
			assert.Equal(t, tc.wantLimit, limit)
			assert.Equal(t, tc.filter, e.suite.Filter())
		})
	}
}

func TestInitFuzzTest_RegistersReplayCases(t *testing.T) {
	db := t.TempDir()
	writeInput(t, db, "A.B", corpus.Crashing, "x", "x")
	writeInput(t, db, "A.B", corpus.Crashing, "y", "y")
	e := newEnv("A.B")

	setup := fuzztest.Initialize([]string{"--corpus_database", db, "--reproduce_findings"}, e.options()...)
	require.NotNil(t, setup)

	var names []string
	for _, c := range e.suite.Cases() {
		assert.Equal(t, "A", c.Suite)
		names = append(names, c.Name)
	}
	if diff := cmp.Diff([]string{"B", "B/replay/x", "B/replay/y"}, names); diff != "" {
		t.Errorf("registered cases mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 1, e.suite.Listeners().Len())
	assert.Equal(t, db, setup.Config.CorpusDatabase)
	assert.True(t, setup.Config.ReplayCrashing)
}

func TestInitFuzzTest_SelectionFiltersButKeepsCases(t *testing.T) {
	e := newEnv("A.B", "A.C")

	setup := fuzztest.Initialize([]string{"--fuzz", "A.C"}, e.options()...)
	require.NotNil(t, setup)

	assert.Equal(t, "A.C", setup.Selected)
	assert.Len(t, e.suite.Cases(), 2)
	require.Len(t, e.suite.Selected(), 1)
	assert.Equal(t, "A.C", e.suite.Selected()[0].FullName())
}

func TestInitFuzzTest_ReturnsRemainingArgs(t *testing.T) {
	e := newEnv("A.B")

	_, rest := fuzztest.InitFuzzTest([]string{"-test.v", "--fuzz_for", "1m", "-test.run=X", "--", "--fuzz=A"}, e.options()...)

	assert.Equal(t, []string{"-test.v", "-test.run=X", "--", "--fuzz=A"}, rest)
}

func TestInitFuzzTest_OptionsFileDefaults(t *testing.T) {
	db := t.TempDir()
	writeInput(t, db, "A.B", corpus.Crashing, "x", "x")
	e := newEnv("A.B")

	defaults := &config.Options{CorpusDatabase: db, ReproduceFindings: true, FuzzFor: "5m"}
	rt, _ := fuzztest.InitFuzzTest([]string{"--fuzz_for=1m"}, e.options(fuzztest.WithDefaults(defaults))...)
	require.NotNil(t, rt)

	limit, _ := rt.FuzzTimeLimit()
	assert.Equal(t, time.Minute, limit)
	assert.Len(t, e.suite.Cases(), 2)
}

func TestInitFuzzTest_ReplaysCorpus(t *testing.T) {
	db := t.TempDir()
	writeInput(t, db, "P.Parse", corpus.Regression, "ok", "ok")
	writeInput(t, db, "P.Parse", corpus.Crashing, "boom", "boom")

	e := newEnv()
	fuzztest.RegisterIn(e.reg, fuzztest.Here(), "P", "Parse", func(data []byte) error {
		if string(data) == "boom" {
			return errors.New("parser crashed")
		}
		return nil
	})

	rt, _ := fuzztest.InitFuzzTest([]string{"--corpus_database=" + db, "--reproduce_findings"}, e.options()...)
	require.NotNil(t, rt)

	summary := e.suite.RunAll(context.Background(), rt)
	assert.Equal(t, host.Summary{Total: 2, Passed: 1, Failed: 1, Duration: summary.Duration}, summary)
}

func TestGetMatchingFuzzTestOrExit(t *testing.T) {
	e := newEnv("S.T", "S.TExtended")

	d := fuzztest.GetMatchingFuzzTestOrExit("S.T", e.options()...)
	assert.Equal(t, "S.T", d.FullName())
	assert.Empty(t, e.exits)

	d = fuzztest.GetMatchingFuzzTestOrExit("Missing", e.options()...)
	assert.Equal(t, registry.Descriptor{}, d)
	assert.Equal(t, []int{1}, e.exits)
}

func TestListRegisteredTests(t *testing.T) {
	e := newEnv("A.B", "A.C", "D.E")

	var out bytes.Buffer
	fuzztest.ListRegisteredTests(&out, e.reg)

	assert.Equal(t, "[*] Fuzz test: A.B\n[*] Fuzz test: A.C\n[*] Fuzz test: D.E\n", out.String())
}

func TestHereRecordsCaller(t *testing.T) {
	e := newEnv("A.B")

	d, ok := e.reg.Find("A.B")
	require.True(t, ok)
	assert.Equal(t, "fuzztest_test.go", filepath.Base(d.Location.File))
	assert.Positive(t, d.Location.Line)
}

type counterFixture struct {
	setUps, tearDowns *int
}

func (f counterFixture) SetUp() error    { *f.setUps++; return nil }
func (f counterFixture) TearDown() error { *f.tearDowns++; return nil }

func TestRegisterFixtureIn(t *testing.T) {
	db := t.TempDir()
	writeInput(t, db, "F.T", corpus.Regression, "a", "a")
	writeInput(t, db, "F.T", corpus.Crashing, "c", "c")

	var setUps, tearDowns int
	var bodies []string
	e := newEnv()
	fuzztest.RegisterFixtureIn(e.reg, fuzztest.Here(), "F", "T",
		func() counterFixture { return counterFixture{&setUps, &tearDowns} },
		func(_ counterFixture, data []byte) error {
			bodies = append(bodies, string(data))
			return nil
		})

	rt, _ := fuzztest.InitFuzzTest([]string{"--corpus_database=" + db, "--reproduce_findings"}, e.options()...)
	require.NotNil(t, rt)

	cases := e.suite.Cases()
	require.Len(t, cases, 2)
	assert.Equal(t, types.FixtureBound, cases[0].Variant)

	summary := e.suite.RunAll(context.Background(), rt)
	assert.Equal(t, 2, summary.Passed)
	assert.Equal(t, 2, setUps)
	assert.Equal(t, 2, tearDowns)
	assert.Equal(t, []string{"a", "c"}, bodies)
}

func TestRegisterPanicsOnEmptyName(t *testing.T) {
	reg := registry.New()
	assert.Panics(t, func() {
		fuzztest.RegisterIn(reg, fuzztest.Here(), "", "T", func([]byte) error { return nil })
	})
}
