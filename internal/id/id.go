// Package id defines the handle types shared between internal/file and
// internal/command. It exists only to break the import cycle those two
// packages would otherwise have (a Command references FileIds, a File
// references a CommandId).
package id

// FileId is a stable handle to a File allocated from a file.Registry.
type FileId int

// CommandId is a stable handle to a Command allocated from a
// scheduler.Scheduler.
type CommandId int
