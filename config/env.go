/*************************************************************************
 * Copyright 2026 Cyber Group 20. All rights reserved.
 * Contact: <rootxtrem3@users.noreply.github.com>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package config

import (
	"bufio"
	"errors"
	"os"
	"strconv"
	"strings"
)

var (
	errNoEnvArg     = errors.New("no env arg")
	ErrInvalidArg   = errors.New("Invalid arguments")
	ErrEmptyEnvFile = errors.New("Environment secret file is empty")
)

// loadEnv pulls a value from the named environment variable, falling back
// to the _FILE variant which names a file whose first line is the value.
// The _FILE form keeps secrets out of the environment proper.
func loadEnv(nm string) (s string, err error) {
	var ok bool
	if s, ok = os.LookupEnv(nm); ok {
		return
	}
	if fp, ok := os.LookupEnv(nm + `_FILE`); ok {
		s, err = loadEnvFile(fp)
	} else {
		err = errNoEnvArg
	}
	return
}

func loadEnvFile(nm string) (r string, err error) {
	var fin *os.File
	if fin, err = os.Open(nm); err != nil {
		return
	}
	s := bufio.NewScanner(fin)
	s.Scan()
	if err = s.Err(); err != nil {
		fin.Close()
		return
	}
	r = s.Text()
	if err = fin.Close(); err != nil {
		return
	} else if r == `` {
		err = ErrEmptyEnvFile
	}
	return
}

// LoadEnvVar loads the named environment variable into cnd unless cnd
// already holds a non-zero value; the config file always wins and the
// environment fills whatever it left unset. A nil defVal leaves the zero
// value in place when the environment has nothing either.
func LoadEnvVar(cnd interface{}, envName string, defVal interface{}) error {
	if cnd == nil {
		return ErrInvalidArg
	}
	switch v := cnd.(type) {
	case *string:
		var def string
		if defVal != nil {
			var ok bool
			if def, ok = defVal.(string); !ok {
				return ErrInvalidArg
			}
		}
		return loadEnvVarString(v, envName, def)
	case *int:
		var def int
		if defVal != nil {
			var ok bool
			if def, ok = defVal.(int); !ok {
				return ErrInvalidArg
			}
		}
		return loadEnvVarInt(v, envName, def)
	case *uint16:
		var def uint16
		if defVal != nil {
			var ok bool
			if def, ok = defVal.(uint16); !ok {
				return ErrInvalidArg
			}
		}
		return loadEnvVarUint16(v, envName, def)
	case *int64:
		var def int64
		if defVal != nil {
			var ok bool
			if def, ok = defVal.(int64); !ok {
				return ErrInvalidArg
			}
		}
		return loadEnvVarInt64(v, envName, def)
	case *bool:
		var def bool
		if defVal != nil {
			var ok bool
			if def, ok = defVal.(bool); !ok {
				return ErrInvalidArg
			}
		}
		return loadEnvVarBool(v, envName, def)
	}
	return ErrInvalidArg
}

func loadEnvVarString(cnd *string, envName, defVal string) (err error) {
	if cnd == nil {
		return ErrInvalidArg
	} else if *cnd != `` || len(envName) == 0 {
		return
	}
	if *cnd, err = loadEnv(envName); err == errNoEnvArg {
		*cnd = defVal
		err = nil
	}
	return
}

func loadEnvVarInt(cnd *int, envName string, defVal int) (err error) {
	if cnd == nil {
		return ErrInvalidArg
	} else if *cnd != 0 || len(envName) == 0 {
		return
	}
	var s string
	if s, err = loadEnv(envName); err == errNoEnvArg {
		*cnd = defVal
		err = nil
		return
	} else if err != nil {
		return
	}
	var v int64
	if v, err = strconv.ParseInt(strings.TrimSpace(s), 10, 0); err == nil {
		*cnd = int(v)
	}
	return
}

func loadEnvVarInt64(cnd *int64, envName string, defVal int64) (err error) {
	if cnd == nil {
		return ErrInvalidArg
	} else if *cnd != 0 || len(envName) == 0 {
		return
	}
	var s string
	if s, err = loadEnv(envName); err == errNoEnvArg {
		*cnd = defVal
		err = nil
		return
	} else if err != nil {
		return
	}
	*cnd, err = strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	return
}

func loadEnvVarUint16(cnd *uint16, envName string, defVal uint16) (err error) {
	if cnd == nil {
		return ErrInvalidArg
	} else if *cnd != 0 || len(envName) == 0 {
		return
	}
	var s string
	if s, err = loadEnv(envName); err == errNoEnvArg {
		*cnd = defVal
		err = nil
		return
	} else if err != nil {
		return
	}
	var v uint64
	if v, err = strconv.ParseUint(strings.TrimSpace(s), 10, 16); err == nil {
		*cnd = uint16(v)
	}
	return
}

func loadEnvVarBool(cnd *bool, envName string, defVal bool) (err error) {
	if cnd == nil {
		return ErrInvalidArg
	} else if *cnd || len(envName) == 0 {
		return
	}
	var s string
	if s, err = loadEnv(envName); err == errNoEnvArg {
		*cnd = defVal
		err = nil
		return
	} else if err != nil {
		return
	}
	*cnd, err = strconv.ParseBool(strings.ToLower(strings.TrimSpace(s)))
	return
}
