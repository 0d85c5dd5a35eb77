package stacks

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// amplifyBuildSpec models the managed build service's build specification.
// It is identical for the connected and disconnected provisioning paths;
// only the injected environment varies per deployment.
type amplifyBuildSpec struct {
	Version  int                  `yaml:"version"`
	Frontend amplifyFrontendBuild `yaml:"frontend"`
}

type amplifyFrontendBuild struct {
	Phases    map[string]buildPhase `yaml:"phases"`
	Artifacts buildArtifacts        `yaml:"artifacts"`
	Cache     buildCache            `yaml:"cache"`
}

type buildPhase struct {
	Commands []string `yaml:"commands"`
}

type buildArtifacts struct {
	BaseDirectory string   `yaml:"baseDirectory"`
	Files         []string `yaml:"files"`
}

type buildCache struct {
	Paths []string `yaml:"paths"`
}

// frontendBuildSpec renders the build specification for the Next.js
// frontend: install dependencies in the frontend source directory, run the
// production build, take artifacts from the framework's output directory
// and persist dependency and build caches between builds.
func frontendBuildSpec() (string, error) {
	spec := amplifyBuildSpec{
		Version: 1,
		Frontend: amplifyFrontendBuild{
			Phases: map[string]buildPhase{
				"preBuild": {Commands: []string{"cd frontend", "npm ci"}},
				"build":    {Commands: []string{"npm run build"}},
			},
			Artifacts: buildArtifacts{
				BaseDirectory: "frontend/.next",
				Files:         []string{"**/*"},
			},
			Cache: buildCache{
				Paths: []string{
					"frontend/node_modules/**/*",
					"frontend/.next/cache/**/*",
				},
			},
		},
	}

	data, err := yaml.Marshal(spec)
	if err != nil {
		return "", fmt.Errorf("failed to marshal build spec: %w", err)
	}
	return string(data), nil
}
