// This file is part of Tangelo.
//
// Tangelo is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Tangelo is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Tangelo.  If not, see <https://www.gnu.org/licenses/>.

// Package modalflag wraps the flag package from the standard library
// with a notion of program modes. Each mode carries its own flag set:
// register the valid sub-modes, Parse() once to find which was chosen,
// then NewMode(), register that mode's flags and Parse() again.
//
//	md := modalflag.Modes{Output: os.Stdout}
//	md.NewArgs(os.Args[1:])
//	md.AddSubModes("RUN", "VERSION")
//	_, _ = md.Parse()
//
//	switch md.Mode() {
//	case "RUN":
//		md.NewMode()
//		scale := md.AddUint("scale", 1, "resolution scale")
//		p, err := md.Parse()
//		...
//	}
//
// Modes can nest as deeply as needed; each Parse() consumes the mode
// selector so RemainingArgs() only ever returns genuine arguments.
//
// Help output is handled inside Parse(). A result of ParseHelp means
// the message has already been printed to the Output writer.
package modalflag
