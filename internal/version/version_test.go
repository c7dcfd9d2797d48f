package version

import "testing"

func TestFromBuildInfo(t *testing.T) {
	tests := []struct {
		name        string
		settings    map[string]string
		wantVersion string
		wantCommit  string
	}{
		{
			name: "clean checkout",
			settings: map[string]string{
				"vcs.revision": "0123456789abcdef",
				"vcs.time":     "2024-03-09T12:00:00Z",
			},
			wantVersion: "dev-20240309",
			wantCommit:  "0123456",
		},
		{
			name: "modified tree",
			settings: map[string]string{
				"vcs.revision": "abc",
				"vcs.modified": "true",
			},
			wantCommit: "abc-dirty",
		},
		{
			name:     "no vcs",
			settings: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oldVersion, oldCommit := Version, Commit
			defer func() { Version, Commit = oldVersion, oldCommit }()

			Version, Commit = "", ""
			fromBuildInfo(tt.settings)
			if Version != tt.wantVersion || Commit != tt.wantCommit {
				t.Errorf("got (%q, %q), want (%q, %q)", Version, Commit, tt.wantVersion, tt.wantCommit)
			}
		})
	}
}

func TestFromBuildInfo_KeepsLinkerValues(t *testing.T) {
	oldVersion, oldCommit := Version, Commit
	defer func() { Version, Commit = oldVersion, oldCommit }()

	Version, Commit = "v1.0.0", "feedbee"
	fromBuildInfo(map[string]string{"vcs.revision": "0123456789", "vcs.time": "2024-03-09T12:00:00Z"})
	if Version != "v1.0.0" || Commit != "feedbee" {
		t.Errorf("got (%q, %q), want linker values kept", Version, Commit)
	}
}
