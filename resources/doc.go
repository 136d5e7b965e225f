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

// Package resources contains functions to prepare paths for Tangelo
// resources. The disk shader cache is the main user of this package: its
// transferable and precompiled files live below the path returned by
// JoinPath.
//
// When a directory named ".tangelo" exists in the current working directory
// the package operates in portable mode and all resources live below that
// directory. Otherwise resources live below the user's configuration
// directory.
package resources
