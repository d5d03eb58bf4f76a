package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"go.viam.com/test"

	"go.viam.com/pcgeom/geometry"
	"go.viam.com/pcgeom/neighbourhood"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	app := NewApp(&out, &errOut)
	err := app.Run(append([]string{"pcgeom"}, args...))
	return out.String(), err
}

func TestSphereCommand(t *testing.T) {
	out, err := run(t, "--points", "2000", "sphere", "--radius", "2", "--outliers", "0.1")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldContainSubstring, "INLIER RMS")
	test.That(t, out, test.ShouldContainSubstring, "/2000")

	_, err = run(t, "sphere", "--outliers", "1")
	test.That(t, err, test.ShouldNotBeNil)
	_, err = run(t, "--points", "3", "sphere")
	test.That(t, err, test.ShouldNotBeNil)
}

func TestCircleCommand(t *testing.T) {
	out, err := run(t, "--points", "500", "circle", "--radius", "3", "--noise", "0")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldContainSubstring, "3.000000")
}

func TestCharacteristicCommand(t *testing.T) {
	for _, args := range [][]string{
		{"--characteristic", "feature", "--option", "planarity"},
		{"--characteristic", "curvature", "--option", "normal_change_rate"},
		{"--characteristic", "local_density", "--option", "3d"},
		{"--characteristic", "approx_local_density", "--option", "knn"},
		{"--characteristic", "roughness"},
	} {
		out, err := run(t, append([]string{"--points", "3000", "--sequential", "characteristic", "--kernel-radius", "0.2"}, args...)...)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, out, test.ShouldContainSubstring, args[1])
		test.That(t, out, test.ShouldContainSubstring, "/3000")
	}

	_, err := run(t, "characteristic", "--characteristic", "feature", "--option", "flatness")
	test.That(t, err, test.ShouldNotBeNil)
	_, err = run(t, "characteristic", "--characteristic", "color")
	test.That(t, err, test.ShouldNotBeNil)
	_, err = run(t, "characteristic")
	test.That(t, err, test.ShouldNotBeNil)
}

func TestParseCharacteristic(t *testing.T) {
	c, option, err := parseCharacteristic("feature", "verticality")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, c, test.ShouldEqual, geometry.Feature)
	test.That(t, option, test.ShouldEqual, int(neighbourhood.Verticality))

	c, option, err = parseCharacteristic("curvature", "mean")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, c, test.ShouldEqual, geometry.Curvature)
	test.That(t, option, test.ShouldEqual, int(neighbourhood.MeanCurvature))

	c, option, err = parseCharacteristic("moment_order1", "ignored")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, c, test.ShouldEqual, geometry.MomentOrder1)
	test.That(t, option, test.ShouldEqual, 0)

	_, _, err = parseCharacteristic("local_density", "4d")
	test.That(t, err, test.ShouldNotBeNil)
}

func TestDuplicatesCommand(t *testing.T) {
	out, err := run(t, "--points", "1000", "duplicates", "--duplicates", "25")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldContainSubstring, "1025")
	test.That(t, out, test.ShouldContainSubstring, "25")

	_, err = run(t, "--points", "10", "duplicates", "--duplicates", "11")
	test.That(t, err, test.ShouldNotBeNil)
}

func TestReductionsCommand(t *testing.T) {
	out, err := run(t, "--debug", "--points", "1000", "reductions")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldContainSubstring, "GRAVITY CENTER")
}

func TestConfigFlag(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.json")
	test.That(t, os.WriteFile(good, []byte(`{"parallel": false, "max_threads": 2}`), 0o600), test.ShouldBeNil)
	_, err := run(t, "--config", good, "--points", "500", "reductions")
	test.That(t, err, test.ShouldBeNil)
	_, err = run(t, "--config", good, "--points", "500", "circle")
	test.That(t, err, test.ShouldBeNil)

	bad := filepath.Join(dir, "bad.json")
	test.That(t, os.WriteFile(bad, []byte(`{"confidence": 3}`), 0o600), test.ShouldBeNil)
	_, err = run(t, "--config", bad, "circle")
	test.That(t, err, test.ShouldNotBeNil)

	_, err = run(t, "--config", filepath.Join(dir, "missing.json"), "circle")
	test.That(t, err, test.ShouldNotBeNil)
}
