// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import "testing"

func TestNewThemeHonorsPreference(t *testing.T) {
	if !NewTheme("dark").IsDark {
		t.Error("dark preference ignored")
	}
	if NewTheme("light").IsDark {
		t.Error("light preference ignored")
	}
	// "auto" must not panic without a terminal attached.
	_ = NewTheme("auto")
}

func TestThemeStylesRender(t *testing.T) {
	th := NewTheme("dark")
	for name, s := range map[string]string{
		"user label":  th.UserLabel.Render("You"),
		"error":       th.ErrorText.Render("boom"),
		"tool header": th.ToolHeader.Render("Output"),
	} {
		if s == "" {
			t.Errorf("%s rendered empty", name)
		}
	}
}
