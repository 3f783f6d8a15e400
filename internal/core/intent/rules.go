package intent

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// rawRule is the on-disk YAML shape. Each file holds an ordered list of
// rules; files are merged in filename order so operators can split rule sets
// across files without losing precedence.
type rawRule struct {
	Intent   string   `yaml:"intent"`
	Keywords []string `yaml:"keywords"`
}

var intentNames = map[string]Intent{
	"revenue_aggregation": RevenueAggregation,
	"volume_aggregation":  VolumeAggregation,
	"retrieval":           Retrieval,
}

// LoadRules reads *.yaml rule files from dir. A missing directory is valid
// and yields the built-in defaults, so deployments only ship rule files when
// they need to override keyword sets.
func LoadRules(dir string) ([]Rule, error) {
	if dir == "" {
		return DefaultRules(), nil
	}
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return DefaultRules(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("intent rule dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("intent rule path %q is not a directory", dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading intent rule dir: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || (!strings.HasSuffix(e.Name(), ".yaml") && !strings.HasSuffix(e.Name(), ".yml")) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	var rules []Rule
	for _, name := range names {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading rule file %s: %w", path, err)
		}

		var raws []rawRule
		if err := yaml.Unmarshal(data, &raws); err != nil {
			return nil, fmt.Errorf("parsing rule file %s: %w", path, err)
		}

		for i, raw := range raws {
			in, ok := intentNames[raw.Intent]
			if !ok {
				return nil, fmt.Errorf("rule file %s: entry %d has unknown intent %q", path, i, raw.Intent)
			}
			if len(raw.Keywords) == 0 {
				return nil, fmt.Errorf("rule file %s: entry %d has no keywords", path, i)
			}
			kws := make([]string, len(raw.Keywords))
			for j, kw := range raw.Keywords {
				kw = strings.ToLower(strings.TrimSpace(kw))
				if kw == "" {
					return nil, fmt.Errorf("rule file %s: entry %d has a blank keyword", path, i)
				}
				kws[j] = kw
			}
			rules = append(rules, Rule{Intent: in, Keywords: kws})
		}
	}

	if len(rules) == 0 {
		return DefaultRules(), nil
	}
	return rules, nil
}
