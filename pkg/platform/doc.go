// Package platform defines the interfaces of the host platform services
// the installer engine consumes: backup/restore, custom fields, plugin
// management, configuration, question import, generic table storage, and
// subprocess execution. The engine treats these as opaque collaborators;
// Memory provides an in-memory implementation for development and tests.
package platform
