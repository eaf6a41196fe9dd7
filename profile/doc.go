/*
Package profile selects the settings profile that applies to a publish
context.

Profiles are ordered filter rules. Each rule restricts the host names, task
types and task names it applies to; a criterion that is left empty matches
anything. The first profile whose criteria all match wins, so more specific
profiles must be listed before general ones.
*/
package profile
