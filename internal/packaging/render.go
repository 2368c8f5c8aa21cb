package packaging

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"text/template"
	"time"

	"github.com/moby/buildkit/frontend/dockerfile/parser"
)

var dockerfile = template.Must(template.New("Dockerfile").Funcs(template.FuncMap{
	"json":     toJSON,
	"duration": formatDuration,
	"join":     strings.Join,
}).Parse(`# syntax=docker/dockerfile:1
# Rendered by forgepack for the {{ .Spec.Profile }} profile.

FROM --platform=$BUILDPLATFORM {{ .Spec.BuilderImage }} AS launcher
ARG TARGETOS
ARG TARGETARCH
ARG TARGETVARIANT
WORKDIR /src
COPY go.mod go.sum ./
RUN go mod download
COPY cmd ./cmd
COPY internal ./internal
RUN GOOS=$TARGETOS GOARCH=$TARGETARCH GOARM=${TARGETVARIANT#v} CGO_ENABLED=0 \
    go build -trimpath -ldflags="-s -w" -o /out/forgepack ./cmd/forgepack

FROM {{ .Spec.BaseImage }}
{{- if .Spec.Packages }}
RUN apk add --no-cache {{ join .Spec.Packages " " }}
{{- end }}
COPY --from=launcher /out/forgepack {{ .Launcher }}
WORKDIR {{ .Spec.AppDir }}
COPY {{ .Spec.Requirements }} ./
RUN pip install --no-cache-dir -r {{ .Spec.Requirements }}
COPY {{ join .Spec.Sources " " }} ./
{{- range .Spec.Identity.OwnedPaths }}
RUN mkdir -p {{ . }}
{{- end }}
RUN {{ .Launcher }} ownership apply \
    --user={{ .User.Name }} --uid={{ .User.UID }} --gid={{ .User.GID }} --group={{ .User.Group }} \
    --home={{ .User.Home }} --shell={{ .User.Shell }} \
    --owner={{ .Owner }}{{ range .Spec.Identity.OwnedPaths }} \
    --path={{ . }}{{ end }}
{{- with .Spec.Admin }}
RUN --mount=type=secret,id={{ $.Secret }},required=true \
    adduser -D -s {{ .Shell }} {{ .Name }} && \
    echo "{{ .Name }}:$(cat /run/secrets/{{ $.Secret }})" | chpasswd && \
    echo "{{ .Name }} ALL=(ALL) ALL" > /etc/sudoers.d/{{ .Name }}
{{- end }}
{{- range .Env }}
ENV {{ .Key }}={{ .Value }}
{{- end }}
EXPOSE {{ .Port }}
USER {{ .User.String }}
HEALTHCHECK --interval={{ duration .Spec.Health.Interval }} --timeout={{ duration .Spec.Health.Timeout }} --start-period={{ duration .Spec.Health.StartPeriod }} --retries={{ .Spec.Health.Retries }} \
    CMD {{ json .HealthCmd }}
ENTRYPOINT {{ json .Entrypoint }}
CMD {{ json .Spec.Command }}
`))

type envVar struct {
	Key   string
	Value string
}

// Renders the Dockerfile for the spec and checks it parses.
func (s *Spec) Render() ([]byte, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(s.Env))
	for k := range s.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	env := make([]envVar, 0, len(keys))
	for _, k := range keys {
		env = append(env, envVar{Key: k, Value: quoteEnv(s.Env[k])})
	}

	var buf bytes.Buffer
	err := dockerfile.Execute(&buf, map[string]any{
		"Spec":       s,
		"User":       s.Identity.RuntimeUser,
		"Owner":      s.Identity.Owner.String(),
		"Launcher":   LauncherPath,
		"Secret":     AdminPasswordSecret,
		"Env":        env,
		"Port":       s.port(),
		"HealthCmd":  []string{LauncherPath, "healthcheck"},
		"Entrypoint": []string{LauncherPath, "launch", "--"},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRenderFailed, err)
	}

	if err := check(buf.Bytes()); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRenderFailed, err)
	}
	return buf.Bytes(), nil
}

// Parses a rendered Dockerfile and checks the final stage runs
// unprivileged with a health check.
func check(data []byte) error {
	res, err := parser.Parse(bytes.NewReader(data))
	if err != nil {
		return err
	}

	var froms int
	var user, health string
	for _, n := range res.AST.Children {
		switch n.Value {
		case "from":
			froms++
			user, health = "", ""
		case "user":
			if n.Next != nil {
				user = n.Next.Value
			}
		case "healthcheck":
			health = n.Original
		}
	}

	switch {
	case froms == 0:
		return fmt.Errorf("no FROM instruction")
	case user == "" || user == "root" || strings.HasPrefix(user, "0:") || user == "0":
		return fmt.Errorf("final stage does not switch to an unprivileged user")
	case health == "":
		return fmt.Errorf("final stage has no HEALTHCHECK")
	}
	return nil
}

func toJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	return string(b), err
}

// Formats d the way Dockerfile duration flags are usually written.
func formatDuration(d time.Duration) string {
	if d%time.Minute == 0 && d >= time.Minute {
		return fmt.Sprintf("%dm", d/time.Minute)
	}
	if d%time.Second == 0 {
		return fmt.Sprintf("%ds", d/time.Second)
	}
	return d.String()
}

// Quotes an ENV value when it contains characters the Dockerfile parser
// would split on.
func quoteEnv(v string) string {
	if v != "" && !strings.ContainsAny(v, " \t\"'\\$") {
		return v
	}
	b, _ := json.Marshal(v)
	return strings.ReplaceAll(string(b), "$", `\$`)
}
