// seehuhn.de/go/pdfstruct - tagged structure trees for PDF files
// Copyright (C) 2025  Jochen Voss <voss@seehuhn.de>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package main

import (
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"

	"seehuhn.de/go/pdfstruct/document"
	"seehuhn.de/go/pdfstruct/pdf"
	"seehuhn.de/go/pdfstruct/structure"
)

func (a *app) newRolesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "roles [role...]",
		Short: "Resolve roles through the role map",
		Long: `Resolve roles through the role map given with --role-map, and show the
standard role and the role class of each.  Without arguments, all roles of
the role map are shown.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			roles := make([]pdf.Name, len(args))
			for i, arg := range args {
				roles[i] = pdf.Name(arg)
			}
			return a.resolveRoles(cmd.OutOrStdout(), roles)
		},
	}
}

func (a *app) resolveRoles(w io.Writer, roles []pdf.Name) error {
	logger := a.log
	doc := document.New(a.cfg.version, &document.Options{Logger: &logger})
	tree, err := structure.NewTree(doc)
	if err != nil {
		return err
	}
	err = a.cfg.applyRoleMap(tree)
	if err != nil {
		return err
	}

	if len(roles) == 0 {
		m, err := tree.RoleMap()
		if err != nil {
			return err
		}
		for role := range m {
			roles = append(roles, role)
		}
		slices.Sort(roles)
	}

	for _, role := range roles {
		fmt.Fprintln(w, describeRole(tree, role))
	}
	return nil
}

func describeRole(tree *structure.Tree, role pdf.Name) string {
	std, ns, ok := tree.ResolveRole(role, nil, 0)
	if !ok {
		return fmt.Sprintf("%s: cannot be mapped (stopped at %s)", role, std)
	}
	res := fmt.Sprintf("%s -> %s", role, std)
	if ns != nil && ns.URI != "" {
		res += " [" + ns.URI + "]"
	}
	return res + " (" + tree.Classify(role, nil).String() + ")"
}
