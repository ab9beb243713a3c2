// Package config defines the settings shared by the task-alarm binaries and
// provides helpers to load, validate and save them in YAML format.
//
// Every field can be overridden from the environment (TASK_ALARM_* variables),
// which is applied after the YAML file and before validation.
package config
