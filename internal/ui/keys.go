// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"github.com/charmbracelet/bubbles/key"
)

// =============================================================================
// KEY MAP DEFINITION
// =============================================================================

// KeyMap defines the keyboard bindings of the batch view.
type KeyMap struct {
	Up       key.Binding
	Down     key.Binding
	Top      key.Binding
	Bottom   key.Binding
	Mark     key.Binding
	Add      key.Binding
	Edit     key.Binding
	Delete   key.Binding
	Dups     key.Binding
	Start    key.Binding
	Stop     key.Binding
	Finish   key.Binding
	More     key.Binding
	Less     key.Binding
	SetMax   key.Binding
	Preview  key.Binding
	FocusLog key.Binding
	Help     key.Binding
	Quit     key.Binding

	Submit  key.Binding
	Cancel  key.Binding
	Confirm key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up:       key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("up/k", "up")),
		Down:     key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("down/j", "down")),
		Top:      key.NewBinding(key.WithKeys("home", "g"), key.WithHelp("g", "top")),
		Bottom:   key.NewBinding(key.WithKeys("end", "G"), key.WithHelp("G", "bottom")),
		Mark:     key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "mark")),
		Add:      key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add")),
		Edit:     key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "args")),
		Delete:   key.NewBinding(key.WithKeys("d", "delete"), key.WithHelp("d", "remove")),
		Dups:     key.NewBinding(key.WithKeys("D"), key.WithHelp("D", "dups")),
		Start:    key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "start")),
		Stop:     key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "stop")),
		Finish:   key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "finish")),
		More:     key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", "max+1")),
		Less:     key.NewBinding(key.WithKeys("-"), key.WithHelp("-", "max-1")),
		SetMax:   key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "set max")),
		Preview:  key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "preview")),
		FocusLog: key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "log")),
		Help:     key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),

		Submit:  key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "ok")),
		Cancel:  key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
		Confirm: key.NewBinding(key.WithKeys("y", "Y"), key.WithHelp("y", "yes")),
	}
}

// ShortHelp returns the bindings shown in the footer.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Add, k.Edit, k.Delete, k.Start, k.Stop, k.Finish, k.More, k.Less, k.Help, k.Quit}
}

// FullHelp returns the bindings grouped for the expanded help view.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Top, k.Bottom, k.Mark},
		{k.Add, k.Edit, k.Delete, k.Dups},
		{k.Start, k.Stop, k.Finish, k.More, k.Less, k.SetMax},
		{k.Preview, k.FocusLog, k.Help, k.Quit},
	}
}
