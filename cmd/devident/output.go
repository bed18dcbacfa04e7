// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dswarbrick/devident"
	"github.com/dswarbrick/devident/scsi"
	"github.com/dswarbrick/devident/utils"
)

func printSize(w io.Writer, path string, n int64) error {
	_, err := fmt.Fprintf(w, "%s: %d bytes (%s)\n", path, n, utils.FormatBytes(uint64(n)))
	return err
}

func printInquiry(w io.Writer, path string, res *scsi.InquiryResult) error {
	tw := tabwriter.NewWriter(w, 0, 8, 1, ' ', 0)

	fmt.Fprintf(tw, "Device:\t%s\n", path)
	fmt.Fprintf(tw, "Vendor:\t%s\n", res.VendorID)
	fmt.Fprintf(tw, "Product:\t%s\n", res.ProductID)
	fmt.Fprintf(tw, "Revision:\t%s\n", res.Revision)
	fmt.Fprintf(tw, "Serial Number:\t%s\n", res.SerialNumber)

	for _, d := range res.Diagnostics {
		fmt.Fprintf(tw, "Diagnostic:\t%s\n", d)
	}

	return tw.Flush()
}

func printIdentities(w io.Writer, ids []*devident.Identity) error {
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)

	fmt.Fprintln(tw, "DEVICE\tSIZE\tVENDOR\tMODEL\tFIRMWARE\tSERIAL\tFAMILY")

	for _, id := range ids {
		size := "-"
		if id.SizeBytes >= 0 {
			size = utils.FormatBytes(uint64(id.SizeBytes))
		}

		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n", id.Path, size, id.Vendor, id.Model(),
			id.Firmware(), id.Serial, id.Family)
	}

	if err := tw.Flush(); err != nil {
		return err
	}

	for _, id := range ids {
		if id.Warning != "" {
			fmt.Fprintf(w, "\n%s: WARNING: %s\n", id.Path, id.Warning)
		}
	}

	return nil
}

func printJSON(w io.Writer, ids []*devident.Identity) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(ids)
}
