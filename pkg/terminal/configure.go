package terminal

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/go-kmon/kmon/pkg/config"
)

func configureCmd(t *Term, ctx callContext, args []string) error {
	if len(args) == 0 {
		return errors.New("wrong number of arguments to \"config\"")
	}
	switch args[0] {
	case "-list":
		return configureList(t)
	case "-save":
		return config.SaveConfig(t.conf)
	case "alias":
		return configureSetAlias(t, args[1:])
	default:
		return configureSet(t, args)
	}
}

type configureIterator struct {
	cfgValue reflect.Value
	cfgType  reflect.Type
	i        int
}

func iterateConfiguration(conf *config.Config) *configureIterator {
	cfgValue := reflect.ValueOf(conf).Elem()
	cfgType := cfgValue.Type()

	return &configureIterator{cfgValue, cfgType, -1}
}

func (it *configureIterator) Next() bool {
	it.i++
	return it.i < it.cfgValue.NumField()
}

func (it *configureIterator) Field() (name string, field reflect.Value) {
	name = it.cfgType.Field(it.i).Tag.Get("yaml")
	if comma := strings.Index(name, ","); comma >= 0 {
		name = name[:comma]
	}
	field = it.cfgValue.Field(it.i)
	return
}

func configureFindFieldByName(conf *config.Config, name string) reflect.Value {
	it := iterateConfiguration(conf)
	for it.Next() {
		fieldName, field := it.Field()
		if fieldName == name {
			return field
		}
	}
	return reflect.ValueOf(nil)
}

func configureList(t *Term) error {
	w := new(tabwriter.Writer)
	w.Init(t.stdout, 0, 8, 1, ' ', 0)

	it := iterateConfiguration(t.conf)
	for it.Next() {
		fieldName, field := it.Field()
		if fieldName == "" {
			continue
		}

		if field.Kind() == reflect.Ptr {
			if !field.IsNil() {
				fmt.Fprintf(w, "%s\t%v\n", fieldName, field.Elem().Interface())
			} else {
				fmt.Fprintf(w, "%s\t<not defined>\n", fieldName)
			}
		} else {
			fmt.Fprintf(w, "%s\t%v\n", fieldName, field.Interface())
		}
	}
	return w.Flush()
}

func configureSet(t *Term, args []string) error {
	if len(args) != 2 {
		return errors.New("wrong number of arguments to \"config\"")
	}
	name, value := args[0], args[1]

	field := configureFindFieldByName(t.conf, name)
	if !field.CanAddr() {
		return fmt.Errorf("unknown configuration parameter %q", name)
	}

	switch field.Kind() {
	case reflect.Ptr:
		if field.Type().Elem().Kind() != reflect.Int {
			return fmt.Errorf("can not set parameter %q", name)
		}
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("argument to %q must be a number", name)
		}
		field.Set(reflect.ValueOf(&n))
	case reflect.Int:
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("argument to %q must be a number", name)
		}
		field.SetInt(int64(n))
	default:
		return fmt.Errorf("can not set parameter %q", name)
	}
	return nil
}

func configureSetAlias(t *Term, args []string) error {
	switch len(args) {
	case 1: // delete alias rule
		alias := args[0]
		for cmd, aliases := range t.conf.Aliases {
			for i := range aliases {
				if aliases[i] == alias {
					aliases = append(aliases[:i], aliases[i+1:]...)
					t.conf.Aliases[cmd] = aliases
					break
				}
			}
		}
	case 2: // add alias rule
		alias, cmd := args[1], args[0]
		if t.conf.Aliases == nil {
			t.conf.Aliases = make(map[string][]string)
		}
		t.conf.Aliases[cmd] = append(t.conf.Aliases[cmd], alias)
	default:
		return errors.New("wrong number of arguments to \"config alias\"")
	}
	t.cmds.Merge(t.conf.Aliases)
	return nil
}
