package docsync

import "github.com/grovetools/editsync/pkg/models"

// Accessors are the host callbacks the layer reads modules through.
type Accessors struct {
	// ModulesByPath returns the host's current path-keyed module map.
	ModulesByPath func() map[string]*models.Module
	// SubscribeModulePaths registers cb for module map changes and returns a
	// function that cancels the subscription. Optional.
	SubscribeModulePaths func(cb func(map[string]*models.Module)) (unsubscribe func())
}

// UpdateType defines what kind of data changed.
type UpdateType string

const (
	UpdateModules  UpdateType = "modules"
	UpdateDisposed UpdateType = "disposed"
)

// Update describes a change to the module map.
type Update struct {
	Type UpdateType `json:"type"`
	// Paths is the complete sorted path set after the change.
	Paths []string `json:"paths"`
	// Added and Removed are relative to the previous path set.
	Added   []string `json:"added,omitempty"`
	Removed []string `json:"removed,omitempty"`
	// Changed lists paths whose module content differs.
	Changed []string `json:"changed,omitempty"`
}
