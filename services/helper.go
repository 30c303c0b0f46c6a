package services

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/ezenkico/deploy-commander/ethnode/models"
)

const (
	LabelProject = "ethnode.project"
	LabelRun     = "ethnode.run"
	LabelService = "ethnode.service"
	LabelRole    = "ethnode.role"
)

func DemuxDockerLogs(dstOut, dstErr io.Writer, src io.Reader) error {
	r := bufio.NewReader(src)

	header := make([]byte, 8)
	for {
		// Read header
		if _, err := io.ReadFull(r, header); err != nil {
			// Clean EOF: stream ends
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return nil
			}
			return err
		}

		streamType := header[0] // 1=stdout, 2=stderr
		size := binary.BigEndian.Uint32(header[4:8])

		if size == 0 {
			continue
		}

		payload := make([]byte, size)
		if _, err := io.ReadFull(r, payload); err != nil {
			return err
		}

		w := dstOut
		if streamType == 2 {
			w = dstErr
		}

		if _, err := w.Write(payload); err != nil {
			return fmt.Errorf("write docker log payload: %w", err)
		}
	}
}

var (
	leadingInvalid = regexp.MustCompile(`^[^a-z0-9]+`)
	invalidChars   = regexp.MustCompile(`[^a-z0-9_-]`)
)

// Label turns an arbitrary name into a docker-friendly identifier. Names must
// start with a letter or digit, so leading separators are dropped.
func Label(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return leadingInvalid.ReplaceAllString(invalidChars.ReplaceAllString(name, "_"), "")
}

func DockerServiceName(project, service string) string {
	return Label(fmt.Sprintf("%s-%s", project, strings.TrimSpace(service)))
}

func DockerNetworkName(project string) string {
	return Label(fmt.Sprintf("%s-net", project))
}

func ServiceLabels(project, run string, service models.ServiceName, role models.ServiceRole) map[string]string {
	return map[string]string{
		LabelProject: project,
		LabelRun:     run,
		LabelService: string(service),
		LabelRole:    string(role),
	}
}

// ShellJoin quotes every argument for a POSIX shell.
func ShellJoin(args ...string) string {
	quoted := make([]string, 0, len(args))
	for _, arg := range args {
		quoted = append(quoted, ShellEscape(arg))
	}
	return strings.Join(quoted, " ")
}

func ShellEscape(value string) string {
	if value == "" {
		return "''"
	}
	return "'" + strings.ReplaceAll(value, "'", `'"'"'`) + "'"
}

// CheckDependsOnServicesExist reports the first dependency that is not part
// of the set.
func CheckDependsOnServicesExist(specs []models.ServiceSpec) error {
	present := make(map[models.ServiceName]struct{}, len(specs))
	for _, s := range specs {
		present[s.Service] = struct{}{}
	}
	for _, s := range specs {
		for _, dep := range s.DependsOn {
			if _, ok := present[dep]; !ok {
				return fmt.Errorf("service %q depends_on %q, but %q does not exist", s.Service, dep, dep)
			}
		}
	}
	return nil
}
