package screen

// The stock frames, one per player position. They differ only in the
// rows that draw the position number.
var defaultScreens = [NumDefaultScreens][Words]uint32{
	{
		0x1FF8FFFF, 0xFFF80000, 0x00000000, 0x00004E81, 0x5BF80000, 0x46C53208,
		0x0000B801, 0xF2E803E0, 0xBFCE8AE8, 0x0FF04FA6, 0x92E81C38, 0x78895A08,
		0x1BD84A87, 0xA3F81BD8, 0xE8FD9800, 0x18182FCA, 0x16481FF8, 0xCFDDF080,
		0x0FF0CD31, 0xF7A80000, 0x97242DA0, 0x0000419F, 0x16980000, 0x5BFB5C00,
		0x0C30F68C, 0x02780C30, 0x004424B8, 0x0C30D7D8, 0xAE580C30, 0x6806AD90,
		0x0FF07D68, 0xF6680FF0, 0x92B60D68, 0x0C300584, 0x4B480C30, 0x0032A000,
		0x0C30FEAA, 0xABF80C30, 0x82F3AA08, 0x0FF0BA3B, 0x92E807E0, 0xBA2732E8,
		0x0000BA19, 0xF2E80000, 0x8287C208, 0x0000FE69, 0x83F80000, 0x00000000,
	},
	{
		0x1FF8FFFF, 0xFFF80000, 0x00000000, 0x00004E81, 0x5BF80000, 0x46C53208,
		0x0000B801, 0xF2E803E0, 0xBFCE8AE8, 0x0FF04FA6, 0x92E81C38, 0x78895A08,
		0x1BD84A87, 0xA3F81BD8, 0xE8FD9800, 0x18182FCA, 0x16481FF8, 0xCFDDF080,
		0x0FF0CD31, 0xF7A80000, 0x97242DA0, 0x0000419F, 0x16980000, 0x5BFB5C00,
		0x07F0F68C, 0x02780FF0, 0x004424B8, 0x0C30D7D8, 0xAE580C30, 0x6806AD90,
		0x0C307D68, 0xF66807F0, 0x92B60D68, 0x07F00584, 0x4B480C30, 0x0032A000,
		0x0C30FEAA, 0xABF80C30, 0x82F3AA08, 0x0FF0BA3B, 0x92E807F0, 0xBA2732E8,
		0x0000BA19, 0xF2E80000, 0x8287C208, 0x0000FE69, 0x83F80000, 0x00000000,
	},
	{
		0x1FF8FFFF, 0xFFF80000, 0x00000000, 0x00004E81, 0x5BF80000, 0x46C53208,
		0x0000B801, 0xF2E803E0, 0xBFCE8AE8, 0x0FF04FA6, 0x92E81C38, 0x78895A08,
		0x1BD84A87, 0xA3F81BD8, 0xE8FD9800, 0x18182FCA, 0x16481FF8, 0xCFDDF080,
		0x0FF0CD31, 0xF7A80000, 0x97242DA0, 0x0000419F, 0x16980000, 0x5BFB5C00,
		0x07E0F68C, 0x02780FF0, 0x004424B8, 0x0C30D7D8, 0xAE580030, 0x6806AD90,
		0x00307D68, 0xF6680030, 0x92B60D68, 0x00300584, 0x4B480030, 0x0032A000,
		0x0030FEAA, 0xABF80C30, 0x82F3AA08, 0x0FF0BA3B, 0x92E807E0, 0xBA2732E8,
		0x0000BA19, 0xF2E80000, 0x8287C208, 0x0000FE69, 0x83F80000, 0x00000000,
	},
	{
		0x1FF8FFFF, 0xFFF80000, 0x00000000, 0x00004E81, 0x5BF80000, 0x46C53208,
		0x0000B801, 0xF2E803E0, 0xBFCE8AE8, 0x0FF04FA6, 0x92E81C38, 0x78895A08,
		0x1BD84A87, 0xA3F81BD8, 0xE8FD9800, 0x18182FCA, 0x16481FF8, 0xCFDDF080,
		0x0FF0CD31, 0xF7A80000, 0x97242DA0, 0x0000419F, 0x16980000, 0x5BFB5C00,
		0x03F0F68C, 0x027807F0, 0x004424B8, 0x0E30D7D8, 0xAE580C30, 0x6806AD90,
		0x0C307D68, 0xF6680C30, 0x92B60D68, 0x0C300584, 0x4B480C30, 0x0032A000,
		0x0C30FEAA, 0xABF80E30, 0x82F3AA08, 0x07F0BA3B, 0x92E803F0, 0xBA2732E8,
		0x0000BA19, 0xF2E80000, 0x8287C208, 0x0000FE69, 0x83F80000, 0x00000000,
	},
}
