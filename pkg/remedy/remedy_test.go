package remedy

import (
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/confighub/cub-guard/pkg/fieldpath"
	"github.com/confighub/cub-guard/pkg/finding"
	"github.com/confighub/cub-guard/pkg/manifest"
	"github.com/confighub/cub-guard/pkg/scanner"
)

func mustParse(t *testing.T, text string) manifest.Document {
	t.Helper()
	d, err := manifest.ParseDocument(text)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return d
}

func mustSerialize(t *testing.T, d manifest.Document) string {
	t.Helper()
	s, err := manifest.Serialize(d)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	return s
}

func findKey(t *testing.T, findings []finding.Finding, key string) finding.Finding {
	t.Helper()
	for _, f := range findings {
		if f.Key == key {
			return f
		}
	}
	t.Fatalf("no finding with key %s in %v", key, findings)
	return finding.Finding{}
}

const insecurePod = `apiVersion: v1
kind: Pod
metadata:
  name: web
spec:
  hostNetwork: true
  hostPID: true
  automountServiceAccountToken: true
  containers:
    - name: app
      image: nginx
      securityContext:
        privileged: true
        allowPrivilegeEscalation: true
        runAsUser: 0
        capabilities:
          add: ["SYS_ADMIN", "NET_BIND_SERVICE", "NET_ADMIN"]
    - name: sidecar
      image: envoy
      securityContext:
        privileged: true
        runAsUser: 0
  volumes:
    - name: config
      configMap:
        name: web
    - name: docker
      hostPath:
        path: /var/run/docker.sock
`

func TestRegistry(t *testing.T) {
	reg := DefaultRegistry()

	want := []string{
		"ALL", "NET_ADMIN", "SYS_ADMIN",
		"allowPrivilegeEscalation", "automountServiceAccountToken",
		"hostIPC", "hostNetwork", "hostPID", "hostPath",
		"privileged", "runAsUser",
	}
	if diff := cmp.Diff(want, reg.Keys()); diff != "" {
		t.Errorf("Keys() mismatch (-want +got):\n%s", diff)
	}

	h, ok := reg.Get("privileged")
	if !ok {
		t.Fatal("expected a privileged handler")
	}
	if h.Risk() != RiskMedium {
		t.Errorf("expected medium risk, got %s", h.Risk())
	}
}

func TestHandlerFor(t *testing.T) {
	reg := DefaultRegistry()

	tests := []struct {
		name     string
		f        finding.Finding
		expected bool
	}{
		{"host network", finding.Finding{Key: "hostNetwork", Category: finding.PrivilegeEscalation}, true},
		{"capability", finding.Finding{Key: "NET_ADMIN", Category: finding.PrivilegeEscalation}, true},
		{"rbac", finding.Finding{Key: "verbs", Category: finding.RBAC}, false},
		{"rbac with pod key", finding.Finding{Key: "privileged", Category: finding.RBAC}, false},
		{"unknown", finding.Finding{Key: "readOnlyRootFilesystem", Category: finding.PrivilegeEscalation}, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := reg.IsFixable(tc.f); got != tc.expected {
				t.Errorf("IsFixable() = %v, expected %v", got, tc.expected)
			}
		})
	}
}

func TestFixOnePrivileged(t *testing.T) {
	s := scanner.New()
	r := New()
	d := mustParse(t, `kind: Pod
spec:
  containers:
    - name: app
      securityContext:
        privileged: true
`)

	findings := s.ScanDocument(d)
	if len(findings) != 1 || findings[0].Key != "privileged" || findings[0].Severity != finding.Critical {
		t.Fatalf("unexpected findings: %v", findings)
	}

	fixed := r.FixOne(d, findings[0])
	if got := s.ScanDocument(fixed); len(got) != 0 {
		t.Errorf("expected no findings after fix, got %v", got)
	}

	sc, _ := manifest.NestedMap(fixed.Object(), "spec")
	containers := sc["containers"].([]interface{})
	ctx := containers[0].(map[string]interface{})["securityContext"].(map[string]interface{})
	if ctx["privileged"] != false {
		t.Errorf("expected privileged false, got %v", ctx["privileged"])
	}
}

func TestFixOneDoesNotModifyInput(t *testing.T) {
	d := mustParse(t, insecurePod)
	before := mustSerialize(t, d)

	r := New()
	for _, f := range scanner.New().ScanDocument(d) {
		r.FixOne(d, f)
	}
	r.FixAll(d)

	if diff := cmp.Diff(before, mustSerialize(t, d)); diff != "" {
		t.Errorf("input was modified (-before +after):\n%s", diff)
	}
}

func TestFixOneTargetsContainer(t *testing.T) {
	d := mustParse(t, insecurePod)
	findings := scanner.New().ScanDocument(d)

	var sidecar finding.Finding
	for _, f := range findings {
		if f.Key == "privileged" && f.ContainerIndex != nil && *f.ContainerIndex == 1 {
			sidecar = f
		}
	}
	if sidecar.Key == "" {
		t.Fatal("no privileged finding for the sidecar")
	}

	fixed := New().FixOne(d, sidecar)
	after := scanner.New().ScanDocument(fixed)
	if len(after) != len(findings)-1 {
		t.Fatalf("expected exactly one finding fixed, got %d -> %d", len(findings), len(after))
	}
	app := findKey(t, after, "privileged")
	if *app.ContainerIndex != 0 {
		t.Errorf("expected app container to stay privileged, got container %d", *app.ContainerIndex)
	}
}

func TestFixOneOutOfRangeIsNoop(t *testing.T) {
	d := mustParse(t, insecurePod)
	f := finding.Finding{Key: "privileged", Category: finding.PrivilegeEscalation, ContainerIndex: finding.Int(7)}

	fixed := New().FixOne(d, f)
	if diff := cmp.Diff(d.Content, fixed.Content); diff != "" {
		t.Errorf("expected no change (-want +got):\n%s", diff)
	}
}

func TestFixOneRBACIsNoop(t *testing.T) {
	d := mustParse(t, `kind: ClusterRole
rules:
  - apiGroups: ["*"]
    resources: ["*"]
    verbs: ["*"]
`)
	r := New()
	findings := scanner.New().ScanDocument(d)
	if len(findings) == 0 {
		t.Fatal("expected RBAC findings")
	}
	for _, f := range findings {
		if diff := cmp.Diff(d.Content, r.FixOne(d, f).Content); diff != "" {
			t.Errorf("RBAC finding %q changed the document:\n%s", f.Issue, diff)
		}
	}
	if diff := cmp.Diff(d.Content, r.FixAll(d).Content); diff != "" {
		t.Errorf("FixAll changed an RBAC document:\n%s", diff)
	}
}

func TestFixHostPathReplacesOnlyThatVolume(t *testing.T) {
	d := mustParse(t, `kind: Deployment
spec:
  template:
    spec:
      volumes:
        - name: config
          configMap: {name: web}
        - name: host
          hostPath: {path: /etc}
        - name: cache
          emptyDir: {}
`)
	f := findKey(t, scanner.New().ScanDocument(d), "hostPath")
	fixed := New().FixOne(d, f)

	want := mustParse(t, `kind: Deployment
spec:
  template:
    spec:
      volumes:
        - name: config
          configMap: {name: web}
        - name: host
          emptyDir: {}
        - name: cache
          emptyDir: {}
`)
	if diff := cmp.Diff(want.Content, fixed.Content); diff != "" {
		t.Errorf("unexpected result (-want +got):\n%s", diff)
	}
}

func TestFixHostPathWithoutIndexFixesAll(t *testing.T) {
	d := mustParse(t, `kind: Pod
spec:
  volumes:
    - name: a
      hostPath: {path: /a}
    - name: b
      hostPath: {path: /b}
`)
	f := finding.Finding{Key: "hostPath", Category: finding.PrivilegeEscalation, Path: fieldpath.New("spec")}
	fixed := New().FixOne(d, f)
	if got := scanner.New().ScanDocument(fixed); len(got) != 0 {
		t.Errorf("expected every hostPath replaced, got %v", got)
	}
}

func TestFixCapability(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "keeps other capabilities and adds drop",
			in: `kind: Pod
spec:
  containers:
    - securityContext:
        capabilities:
          add: ["SYS_ADMIN", "NET_BIND_SERVICE"]
`,
			want: `kind: Pod
spec:
  containers:
    - securityContext:
        capabilities:
          add: ["NET_BIND_SERVICE"]
          drop: ["ALL"]
`,
		},
		{
			name: "removes empty add",
			in: `kind: Pod
spec:
  containers:
    - securityContext:
        capabilities:
          add: ["SYS_ADMIN"]
`,
			want: `kind: Pod
spec:
  containers:
    - securityContext:
        capabilities:
          drop: ["ALL"]
`,
		},
		{
			name: "keeps existing drop",
			in: `kind: Pod
spec:
  containers:
    - securityContext:
        capabilities:
          add: ["SYS_ADMIN"]
          drop: ["MKNOD"]
`,
			want: `kind: Pod
spec:
  containers:
    - securityContext:
        capabilities:
          drop: ["MKNOD"]
`,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d := mustParse(t, tc.in)
			f := findKey(t, scanner.New().ScanDocument(d), "SYS_ADMIN")
			fixed := New().FixOne(d, f)
			if diff := cmp.Diff(mustParse(t, tc.want).Content, fixed.Content); diff != "" {
				t.Errorf("unexpected result (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFixRunAsUser(t *testing.T) {
	d := mustParse(t, `kind: Pod
spec:
  containers:
    - name: root
      securityContext:
        runAsUser: 0
    - name: user
      securityContext:
        runAsUser: 2000
`)
	f := findKey(t, scanner.New().ScanDocument(d), "runAsUser")
	f.ContainerIndex = nil

	fixed := New().FixOneWithOptions(d, f, Options{FromFixAll: true})
	want := mustParse(t, `kind: Pod
spec:
  containers:
    - name: root
      securityContext:
        runAsUser: 1000
        runAsNonRoot: true
    - name: user
      securityContext:
        runAsUser: 2000
`)
	if diff := cmp.Diff(want.Content, fixed.Content); diff != "" {
		t.Errorf("unexpected result (-want +got):\n%s", diff)
	}
}

func TestFixAllResolvesEveryPodFinding(t *testing.T) {
	d := mustParse(t, insecurePod)
	fixed := New().FixAll(d)

	if got := scanner.New().ScanDocument(fixed); len(got) != 0 {
		t.Fatalf("expected no findings after FixAll, got %v", got)
	}

	want := mustParse(t, `apiVersion: v1
kind: Pod
metadata:
  name: web
spec:
  hostNetwork: false
  hostPID: false
  automountServiceAccountToken: false
  containers:
    - name: app
      image: nginx
      securityContext:
        privileged: false
        allowPrivilegeEscalation: false
        runAsUser: 1000
        runAsNonRoot: true
        capabilities:
          add: ["NET_BIND_SERVICE"]
          drop: ["ALL"]
    - name: sidecar
      image: envoy
      securityContext:
        privileged: false
        runAsUser: 1000
        runAsNonRoot: true
  volumes:
    - name: config
      configMap:
        name: web
    - name: docker
      emptyDir: {}
`)
	if diff := cmp.Diff(want.Content, fixed.Content); diff != "" {
		t.Errorf("unexpected result (-want +got):\n%s", diff)
	}
}

func TestFixAllIsIdempotent(t *testing.T) {
	r := New()
	once := r.FixAll(mustParse(t, insecurePod))
	twice := r.FixAll(once)
	if diff := cmp.Diff(once.Content, twice.Content); diff != "" {
		t.Errorf("second FixAll changed the document:\n%s", diff)
	}
}

func TestFixAllNeverAddsFields(t *testing.T) {
	d := mustParse(t, `kind: Deployment
spec:
  template:
    spec:
      containers:
        - name: app
          image: nginx
        - name: other
          securityContext:
            runAsUser: 1000
`)
	fixed := New().FixAll(d)
	if diff := cmp.Diff(d.Content, fixed.Content); diff != "" {
		t.Errorf("FixAll introduced fields on a clean document:\n%s", diff)
	}
}

func TestFixAllHandlesMultipleHostPathVolumes(t *testing.T) {
	d := mustParse(t, `kind: Pod
spec:
  volumes:
    - name: a
      hostPath: {path: /a}
    - name: b
      hostPath: {path: /b}
`)
	fixed := New().FixAll(d)
	if got := scanner.New().ScanDocument(fixed); len(got) != 0 {
		t.Errorf("expected both volumes fixed, got %v", got)
	}
}

func TestFixAllManyHostPathVolumesIsIdempotent(t *testing.T) {
	var b strings.Builder
	b.WriteString("kind: Pod\nspec:\n  volumes:\n")
	for i := 0; i < 12; i++ {
		fmt.Fprintf(&b, "    - name: v%d\n      hostPath: {path: /data/%d}\n", i, i)
	}
	d := mustParse(t, b.String())

	once := New().FixAll(d)
	if got := scanner.New().ScanDocument(once); len(got) != 0 {
		t.Fatalf("expected every hostPath volume fixed, %d findings left", len(got))
	}
	twice := New().FixAll(once)
	if diff := cmp.Diff(once.Content, twice.Content); diff != "" {
		t.Errorf("second FixAll changed the document:\n%s", diff)
	}
}

func TestDedupeID(t *testing.T) {
	c := 1
	tests := []struct {
		name string
		f    finding.Finding
		want string
	}{
		{"pod level", finding.Finding{Key: "hostPID", Path: fieldpath.MustParse("spec.hostPID")}, "hostPID"},
		{"container", finding.Finding{Key: "privileged", ContainerIndex: &c, Path: fieldpath.MustParse("spec.containers[1].securityContext.privileged")}, "privileged/c1"},
		{"volume", finding.Finding{Key: "hostPath", Path: fieldpath.MustParse("document[2].spec.volumes[3].hostPath")}, "hostPath/v3"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := dedupeID(tc.f); got != tc.want {
				t.Errorf("dedupeID() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestFixOneInSet(t *testing.T) {
	res, err := manifest.Parse(`kind: Pod
spec:
  hostIPC: true
---
kind: Pod
spec:
  hostIPC: true
`)
	if err != nil {
		t.Fatal(err)
	}

	findings := scanner.New().Scan(res.Documents, res.IsMultiDoc)
	if len(findings) != 2 {
		t.Fatalf("expected 2 findings, got %d", len(findings))
	}

	fixed := New().FixOneInSet(res.Documents, findings[1])
	after := scanner.New().Scan(fixed, true)
	if len(after) != 1 || *after[0].DocumentIndex != 0 {
		t.Errorf("expected only document 0 to keep its finding, got %v", after)
	}
	if got := scanner.New().Scan(res.Documents, true); len(got) != 2 {
		t.Errorf("input set was modified")
	}

	all := New().FixAllInSet(res.Documents)
	if got := scanner.New().Scan(all, true); len(got) != 0 {
		t.Errorf("expected FixAllInSet to fix both documents, got %v", got)
	}
}

func TestPlan(t *testing.T) {
	findings := []finding.Finding{
		{Key: "hostPath", Category: finding.PrivilegeEscalation, Path: fieldpath.MustParse("spec.volumes[2].hostPath")},
		{Key: "verbs", Category: finding.RBAC, Issue: "Wildcard verb access"},
	}
	plan := New().Plan(findings)
	if len(plan) != 2 {
		t.Fatalf("expected 2 actions, got %d", len(plan))
	}
	if !plan[0].Fixable || plan[0].Risk != RiskHigh || plan[0].Description != "replace hostPath with emptyDir on volumes[2]" {
		t.Errorf("unexpected hostPath action: %+v", plan[0])
	}
	if plan[1].Fixable {
		t.Errorf("RBAC action must not be fixable: %+v", plan[1])
	}
}
