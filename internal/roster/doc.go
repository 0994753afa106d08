// Package roster imports the inputs of an allocation: participant
// preferences and the capacity configuration.
//
// Preferences are read from CSV (a plain "participant,first,second,third"
// header or a survey export with Timestamp and optional Email address
// columns) or from YAML / JSONC participant lists. Capacity configuration
// is YAML or JSONC; comments in JSONC files are stripped with
// github.com/tidwall/jsonc before decoding.
//
// Import runs the one-time import lifecycle: load rows, mark duplicated
// preference slots, register every referenced option, merge option
// spellings that differ only in case or surrounding whitespace,
// canonicalize preference slots to the surviving spelling and take the
// pristine snapshot that every allocation run resets from.
package roster
