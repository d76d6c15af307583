// Package config loads, validates and saves the bridge settings in YAML.
//
// Every field has a default, so the bridge runs without a settings file:
// port 5577 on loopback, the CPX device, python3 and the python_libs
// directory next to the binary.
package config
